package storage

import "errors"

// Common client storage errors
var (
	// ErrNotFound indicates that the key is absent from the mirror
	ErrNotFound = errors.New("mirror entry not found")

	// ErrCorrupted indicates that a stored blob could not be decoded
	ErrCorrupted = errors.New("mirror entry is corrupted")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
