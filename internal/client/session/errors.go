package session

import (
	"errors"
	"strings"
)

var (
	// ErrNotAuthenticated is returned by operations that need a session token
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionRevoked means the server explicitly refused the stored token,
	// the session has been torn down
	ErrSessionRevoked = errors.New("session revoked by server")

	// ErrSuperseded is returned by a reconciliation whose results were discarded
	// because a newer one started, the session was logged out or closed
	ErrSuperseded = errors.New("reconciliation superseded")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("session store closed")

	// ErrAlreadyStarted is returned by a second Start call
	ErrAlreadyStarted = errors.New("session store already started")
)

// ValidationError is a form error caught before any network call
type ValidationError struct {
	Err   error
	Field string
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was raised by client-side validation
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func invalid(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Err: err}
}

// DegradedError reports a reconciliation that hit transport errors.
// Cached data is kept and the session stays usable offline.
type DegradedError struct {
	Errs []error
}

func (e *DegradedError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return "server unreachable, serving cached data: " + strings.Join(msgs, "; ")
}

func (e *DegradedError) Unwrap() []error {
	return e.Errs
}

// IsDegraded reports whether err is a *DegradedError
func IsDegraded(err error) bool {
	var dErr *DegradedError
	return errors.As(err, &dErr)
}
