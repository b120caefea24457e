package store

import "errors"

var (
	ErrNotFound = errors.New("document not found")

	ErrDuplicateKey = errors.New("duplicate document key")

	// ErrUnavailable wraps every backend I/O failure.
	ErrUnavailable = errors.New("store unavailable")
)
