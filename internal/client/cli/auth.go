package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/iudanet/ctfclient/internal/client/api"
	"github.com/iudanet/ctfclient/internal/models"
)

func (c *Cli) registerCmd() *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.io.Println("=== Registration ===")
			c.io.Println()

			var err error
			if username == "" {
				if username, err = c.io.ReadInput("Username: "); err != nil {
					return fmt.Errorf("failed to read username: %w", err)
				}
			}
			if email == "" {
				if email, err = c.io.ReadInput("Email: "); err != nil {
					return fmt.Errorf("failed to read email: %w", err)
				}
			}
			password, err := c.io.ReadPassword("Password (min 8 chars): ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			if err := c.store.Register(cmd.Context(), username, password, email); err != nil {
				return err
			}
			c.io.Println("✓ Registration successful!")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func (c *Cli) verifyEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-email <token>",
		Short: "Confirm the email address with the token from the verification email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.store.VerifyEmail(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.io.Println("✓ Email verified!")
			return nil
		},
	}
}

func (c *Cli) loginCmd() *cobra.Command {
	var username, otp string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and download the session data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c.io.Println("=== Login ===")
			c.io.Println()

			var err error
			if username == "" {
				if username, err = c.io.ReadInput("Username: "); err != nil {
					return fmt.Errorf("failed to read username: %w", err)
				}
			}
			password, err := c.io.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			err = c.store.Login(ctx, username, password, otp)
			if errors.Is(err, api.ErrTwoFactorRequired) && otp == "" {
				// сервер просит второй фактор, повторяем вход с кодом
				if otp, err = c.io.ReadInput("One-time code: "); err != nil {
					return fmt.Errorf("failed to read one-time code: %w", err)
				}
				err = c.store.Login(ctx, username, password, otp)
			}
			if err != nil {
				return err
			}

			c.io.Println("✓ Login successful!")
			if !c.store.Ready() {
				c.io.Println("⚠️  Server unreachable after login, session data will load on the next sync.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVar(&otp, "otp", "", "one-time code if two-factor authentication is enabled")
	return cmd
}

func (c *Cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.store.Logout(cmd.Context())
			c.io.Println("✓ Logout successful!")
			c.io.Println("Your local session has been deleted.")
			return nil
		},
	}
}

func (c *Cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			snap := c.store.Snapshot()

			c.io.Println("=== Session Status ===")
			c.io.Println()
			c.io.Printf("Server: %s\n", c.cfg.BaseURL())

			if !snap.Authenticated {
				c.io.Println("Status: Not authenticated")
				c.io.Println()
				c.io.Println("Run 'ctfclient login' to authenticate.")
				return nil
			}

			c.io.Println("Status: Authenticated")
			if snap.User != nil {
				c.io.Printf("Username: %s\n", snap.User.Username)
				c.io.Printf("Points: %d\n", snap.User.Points)
				c.io.Printf("Two-factor: %s\n", twoFactorStatus(snap.User.TOTPStatus))
			}
			if snap.Team != nil {
				c.io.Printf("Team: %s\n", snap.Team.Name)
			} else {
				c.io.Println("Team: none")
			}

			if expiresAt, ok := tokenExpiry(snap.Token); ok {
				c.io.Printf("Token expires: %s\n", expiresAt.Local().Format(time.RFC3339))
				if time.Until(expiresAt) <= 0 {
					c.io.Println("⚠️  Token has expired. Please login again.")
				}
			}

			c.io.Println()
			if last, err := c.mirror.LastSync(ctx); err == nil && !last.IsZero() {
				c.io.Printf("Last sync: %s\n", last.Local().Format(time.RFC3339))
			}
			if snap.Ready {
				c.io.Println("✓ Cached data is up to date")
			} else {
				c.io.Println("⚠️  Offline: cached data may be stale. Run 'ctfclient sync' to refresh.")
			}
			if snap.Pending {
				c.io.Println("Local changes are waiting for the next sync.")
			}
			return nil
		},
	}
}

func (c *Cli) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "config",
		Short:       "Print the effective configuration as TOML",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationSession: sessionNone},
		RunE: func(*cobra.Command, []string) error {
			return c.cfg.WriteTOML(c.io)
		},
	}
}

// tokenExpiry reads exp from a JWT session token without verifying it.
// Opaque tokens report false.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func twoFactorStatus(status int) string {
	switch status {
	case models.TOTPEnabled:
		return "enabled"
	case models.TOTPPending:
		return "pending verification"
	default:
		return "disabled"
	}
}
