package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/ctfclient/internal/client/api"
	"github.com/iudanet/ctfclient/internal/validation"
	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

// Login authenticates and reconciles. When the server asks for a one-time
// code the returned error matches api.ErrTwoFactorRequired and the session
// is left untouched; retry with otp set.
func (s *Store) Login(ctx context.Context, username, password, otp string) error {
	if err := invalid("username", validation.ValidateRequired("Username", username)); err != nil {
		return err
	}
	if err := invalid("password", validation.ValidateRequired("Password", password)); err != nil {
		return err
	}
	if otp != "" {
		if err := invalid("otp", validation.ValidateOTP(otp)); err != nil {
			return err
		}
	}
	if err := s.alive(); err != nil {
		return err
	}

	data, err := s.remote.Login(ctx, pkgapi.LoginRequest{
		Username: username,
		Password: password,
		OTP:      otp,
	})
	if err != nil {
		return err
	}
	if data == nil || data.Token == "" {
		return fmt.Errorf("login response carries no token")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.token = data.Token
	s.authenticated = true
	err = s.mirror.SaveToken(ctx, data.Token)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	s.logger.InfoContext(ctx, "logged in", "username", username)

	switch err := s.Reconcile(ctx); {
	case err == nil:
	case errors.Is(err, ErrSessionRevoked):
		return err
	case IsDegraded(err), errors.Is(err, ErrSuperseded):
		s.logger.WarnContext(ctx, "post-login reconciliation incomplete", "error", err)
	default:
		return err
	}

	s.nav.Navigate(ViewHome)
	return nil
}

// Register creates an account. The caller stays unauthenticated until the
// email address is verified and Login succeeds.
func (s *Store) Register(ctx context.Context, username, password, email string) error {
	if err := invalid("username", validation.ValidateUsername(username)); err != nil {
		return err
	}
	if err := invalid("password", validation.ValidatePassword(password)); err != nil {
		return err
	}
	if err := invalid("email", validation.ValidateEmail(email)); err != nil {
		return err
	}

	if err := s.remote.Register(ctx, pkgapi.RegisterRequest{
		Username: username,
		Password: password,
		Email:    email,
	}); err != nil {
		return err
	}

	s.nav.Navigate(ViewRegisterEmail)
	return nil
}

// VerifyEmail confirms the address with the token from the verification mail
func (s *Store) VerifyEmail(ctx context.Context, token string) error {
	if err := invalid("uuid", validation.ValidateRequired("Verification token", token)); err != nil {
		return err
	}
	if err := s.remote.VerifyEmail(ctx, token); err != nil {
		return err
	}
	s.nav.Navigate(ViewLogin)
	return nil
}

// AddTwoFactor provisions a TOTP secret and returns it for display
func (s *Store) AddTwoFactor(ctx context.Context) (string, error) {
	if err := s.requireAuth(); err != nil {
		return "", err
	}
	data, err := s.remote.AddTwoFactor(ctx)
	if err != nil {
		return "", err
	}
	if data == nil || data.TOTPSecret == "" {
		return "", fmt.Errorf("server returned no TOTP secret")
	}
	return data.TOTPSecret, nil
}

// VerifyTwoFactor submits a code for the pending TOTP secret. The caller
// reconciles afterwards to pick up the new totp_status.
func (s *Store) VerifyTwoFactor(ctx context.Context, code string) (bool, error) {
	if err := invalid("otp", validation.ValidateOTP(code)); err != nil {
		return false, err
	}
	if err := s.requireAuth(); err != nil {
		return false, err
	}
	data, err := s.remote.VerifyTwoFactor(ctx, code)
	if err != nil {
		return false, err
	}
	return data != nil && data.Valid, nil
}

// CreateTeam creates a team and replaces the cached team
func (s *Store) CreateTeam(ctx context.Context, name, password string) error {
	return s.teamAction(ctx, name, password, s.remote.CreateTeam)
}

// JoinTeam joins a team and replaces the cached team
func (s *Store) JoinTeam(ctx context.Context, name, password string) error {
	return s.teamAction(ctx, name, password, s.remote.JoinTeam)
}

func (s *Store) teamAction(
	ctx context.Context,
	name, password string,
	action func(context.Context, pkgapi.TeamRequest) error,
) error {
	if err := invalid("name", validation.ValidateTeamName(name)); err != nil {
		return err
	}
	if err := s.requireAuth(); err != nil {
		return err
	}

	if err := action(ctx, pkgapi.TeamRequest{Name: name, Password: password}); err != nil {
		return err
	}

	team, err := s.remote.GetTeam(ctx, api.SelfID)
	if err != nil && !api.IsNotFound(err) {
		return fmt.Errorf("failed to refresh team: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.token == "" {
		return ErrSuperseded
	}
	if err := s.mirror.SaveTeam(ctx, team); err != nil {
		return fmt.Errorf("failed to save team: %w", err)
	}
	s.team = team
	return nil
}

// AttemptFlag submits a flag and reports whether it was correct.
// The catalog is not changed, see MarkSolved and Reconcile.
func (s *Store) AttemptFlag(ctx context.Context, challengeID int64, flag string) (bool, error) {
	if err := invalid("flag", validation.ValidateRequired("Flag", flag)); err != nil {
		return false, err
	}
	if err := s.requireAuth(); err != nil {
		return false, err
	}
	data, err := s.remote.AttemptFlag(ctx, challengeID, flag)
	if err != nil {
		return false, err
	}
	return data != nil && data.Correct, nil
}

// MarkSolved optimistically marks a challenge solved until the next reconciliation
func (s *Store) MarkSolved(challengeID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches.markSolved(challengeID)
}

// UserChanges is a profile edit form. Empty fields are left unchanged.
type UserChanges struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
	Username        string
}

// ModifyUser submits profile changes. Form errors come back as
// *ValidationError before any request is made.
func (s *Store) ModifyUser(ctx context.Context, changes UserChanges) error {
	changePassword := changes.NewPassword != "" || changes.ConfirmPassword != ""
	if !changePassword && changes.Username == "" {
		return invalid("", errors.New("nothing to change"))
	}
	if changePassword {
		if err := invalid("old_password", validation.ValidateRequired("Current password", changes.OldPassword)); err != nil {
			return err
		}
		err := validation.ValidatePasswordConfirmation(changes.NewPassword, changes.ConfirmPassword)
		if err != nil {
			return invalid("password", err)
		}
	}
	if changes.Username != "" {
		if err := invalid("username", validation.ValidateUsername(changes.Username)); err != nil {
			return err
		}
	}
	if err := s.requireAuth(); err != nil {
		return err
	}

	if changePassword {
		if err := s.remote.ChangePassword(ctx, pkgapi.ChangePasswordRequest{
			OldPassword: changes.OldPassword,
			Password:    changes.NewPassword,
		}); err != nil {
			return err
		}
	}

	if changes.Username != "" {
		if err := s.remote.ChangeUsername(ctx, changes.Username); err != nil {
			return err
		}
		s.mu.Lock()
		s.patches.setUsername(changes.Username)
		s.mu.Unlock()
	}
	return nil
}

func (s *Store) alive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) requireAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.token == "":
		return ErrNotAuthenticated
	}
	return nil
}
