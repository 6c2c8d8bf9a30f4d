package cli

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"github.com/pquerna/otp/totp"
	"github.com/spf13/cobra"
)

// TOTPIssuer is the issuer shown by authenticator apps
const TOTPIssuer = "RACTF"

// ErrCodeRejected is returned when the server refuses a one-time code
var ErrCodeRejected = errors.New("one-time code rejected, check the clock of your device and try again")

func (c *Cli) twoFactorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "2fa",
		Short: "Manage two-factor authentication",
	}
	cmd.AddCommand(c.twoFactorAddCmd(), c.twoFactorVerifyCmd())
	return requireAuth(cmd)
}

func (c *Cli) twoFactorAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Request a new TOTP secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user := c.store.Snapshot().User
			if user.TwoFactorEnabled() {
				c.io.Println("⚠️  This will replace your existing two-factor authentication once verified.")
			}

			secret, err := c.store.AddTwoFactor(cmd.Context())
			if err != nil {
				return err
			}

			username := ""
			if user != nil {
				username = user.Username
			}
			c.io.Println("Add this secret to your authenticator app:")
			c.io.Println()
			c.io.Printf("  %s\n", groupSecret(secret))
			c.io.Println()
			if uri, err := otpauthURI(TOTPIssuer, username, secret); err == nil {
				c.io.Printf("  %s\n", uri)
				c.io.Println()
			} else {
				c.logger.DebugContext(cmd.Context(), "no key URI for secret", "error", err)
			}
			c.io.Println("Then run 'ctfclient 2fa verify <code>' to finish.")
			return nil
		},
	}
}

func (c *Cli) twoFactorVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <code>",
		Short: "Confirm the TOTP secret with a one-time code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			valid, err := c.store.VerifyTwoFactor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !valid {
				return ErrCodeRejected
			}
			c.io.Println("✓ Two-factor authentication enabled!")
			return c.refresh(cmd.Context())
		},
	}
}

// groupSecret splits the secret in blocks of four for manual entry
func groupSecret(secret string) string {
	var b strings.Builder
	for i, r := range secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// otpauthURI builds the key URI understood by authenticator apps
func otpauthURI(issuer, account, secret string) (string, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).
		DecodeString(strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "=")))
	if err != nil {
		return "", fmt.Errorf("invalid TOTP secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Secret:      raw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build key URI: %w", err)
	}
	return key.URL(), nil
}
