package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgapi "github.com/iudanet/ctfclient/pkg/api"
)

// UnknownErrorMessage is reported when neither the server nor the transport
// said anything useful about a failure
const UnknownErrorMessage = "Unknown error occurred."

// ErrTwoFactorRequired matches (via errors.Is) a login rejection asking for a one-time code
var ErrTwoFactorRequired = errors.New("two-factor authentication required")

// RequestError is the normalized failure of a call to the platform.
//
// StatusCode is 0 when no response reached the client (transport error).
// A non-2xx response is an explicit rejection only when it carries a body;
// a bare status (e.g. 502 from a proxy) says nothing about the session.
type RequestError struct {
	Err        error
	Message    string
	Reason     string
	Body       string
	StatusCode int
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return "transport error: " + e.Message
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is позволяет errors.Is(err, ErrTwoFactorRequired)
func (e *RequestError) Is(target error) bool {
	return target == ErrTwoFactorRequired && e.Reason == pkgapi.ReasonTwoFactorRequired
}

// Transport reports whether the request never got a response
func (e *RequestError) Transport() bool {
	return e.StatusCode == 0
}

// IsTransport reports whether err is a transport-level failure
func IsTransport(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Transport()
}

// Explicit reports whether the server answered with a status and a reason
func (e *RequestError) Explicit() bool {
	return e.StatusCode != 0 && strings.TrimSpace(e.Body) != ""
}

// IsRejection reports whether the server explicitly refused the request
func IsRejection(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Explicit()
}

// IsNotFound reports a 404 rejection
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}

// Message returns the human readable description of any error,
// the way forms show it to the user
func Message(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownErrorMessage
}

// newRejection builds the error for a non-2xx response.
// Приоритет сообщения: поле "m" из тела, затем само тело, затем общий текст.
func newRejection(status int, body []byte) *RequestError {
	reqErr := &RequestError{
		StatusCode: status,
		Body:       string(body),
	}

	var envelope pkgapi.RawResponse
	if err := json.Unmarshal(body, &envelope); err == nil {
		reqErr.Message = envelope.Message
		var data pkgapi.ErrorData
		if len(envelope.Data) > 0 && json.Unmarshal(envelope.Data, &data) == nil {
			reqErr.Reason = data.Reason
		}
	}

	if reqErr.Message == "" {
		reqErr.Message = strings.TrimSpace(string(body))
	}
	if reqErr.Message == "" {
		reqErr.Message = UnknownErrorMessage
	}
	return reqErr
}

// newTransportError wraps a failure that happened before a response arrived
func newTransportError(err error) *RequestError {
	msg := UnknownErrorMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &RequestError{Err: err, Message: msg}
}
