package api

import "encoding/json"

// Response is the envelope every endpoint of the platform answers with.
// S reports success, M carries a human readable message, D the payload.
type Response[T any] struct {
	Data    T      `json:"d"`
	Message string `json:"m,omitempty"`
	Success bool   `json:"s"`
}

// ErrorData is the payload of a rejected request. Reason is a machine
// readable code such as ReasonTwoFactorRequired.
type ErrorData struct {
	Reason string `json:"reason,omitempty"`
}

// RawResponse keeps the payload undecoded, used for error inspection
type RawResponse = Response[json.RawMessage]
