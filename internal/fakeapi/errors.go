package fakeapi

import (
	"net/http"

	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

// Rejection is a request the platform refuses. Message is what the real
// platform shows the user, Reason is the machine readable code.
type Rejection struct {
	Message string
	Reason  string
	Status  int
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(status int, message string) *Rejection {
	return &Rejection{Status: status, Message: message}
}

// Rejections of the fake platform, compared with errors.Is
var (
	ErrBadRequest         = reject(http.StatusBadRequest, "Bad request.")
	ErrBadCredentials     = reject(http.StatusUnauthorized, "Incorrect username or password.")
	ErrBadTwoFactor       = reject(http.StatusUnauthorized, "Incorrect 2FA code.")
	ErrInvalidToken       = reject(http.StatusUnauthorized, "Invalid token.")
	ErrUsernameTaken      = reject(http.StatusBadRequest, "That username is already in use.")
	ErrEmailTaken         = reject(http.StatusBadRequest, "That email is already in use.")
	ErrBadVerification    = reject(http.StatusBadRequest, "Invalid verification token.")
	ErrTwoFactorNotPended = reject(http.StatusBadRequest, "2FA has not been requested.")
	ErrTeamNameTaken      = reject(http.StatusBadRequest, "That team name is already in use.")
	ErrUserNotFound       = reject(http.StatusNotFound, "User not found.")
	ErrTeamNotFound       = reject(http.StatusNotFound, "Team not found.")
	ErrChallengeNotFound  = reject(http.StatusNotFound, "Challenge not found.")
	ErrAlreadyInTeam      = reject(http.StatusForbidden, "You are already in a team.")
	ErrBadTeamPassword    = reject(http.StatusForbidden, "Incorrect team password.")
	ErrChallengeLocked    = reject(http.StatusForbidden, "Challenge is locked.")
	ErrAlreadySolved      = reject(http.StatusForbidden, "You have already solved this challenge.")
	ErrTooFast            = reject(http.StatusTooManyRequests, "You are doing that too fast.")

	ErrEmailNotVerified = &Rejection{
		Status:  http.StatusUnauthorized,
		Message: "Your email address has not been verified.",
		Reason:  "email_verification",
	}
	ErrTwoFactorRequired = &Rejection{
		Status:  http.StatusUnauthorized,
		Message: "2FA code required.",
		Reason:  pkgapi.ReasonTwoFactorRequired,
	}
)
