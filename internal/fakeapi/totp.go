package fakeapi

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// TOTPIssuer names the platform in generated keys
	TOTPIssuer = "RACTF"

	totpSecretSize = 20
)

// totpOpts are the parameters authenticator apps assume by default.
// Skew 1 accepts the periods right before and after now.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// newTOTPSecret returns a random base32 secret for account
func newTOTPSecret(account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: account,
		SecretSize:  totpSecretSize,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return key.Secret(), nil
}

// TOTPCode returns the one-time code for secret at t
func TOTPCode(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, t, totpOpts)
	if err != nil {
		return "", fmt.Errorf("invalid TOTP secret: %w", err)
	}
	return code, nil
}

// validTOTP checks code against the periods around t
func validTOTP(secret, code string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t, totpOpts)
	return err == nil && ok
}
