package analytics

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")

	ErrEmptyUser = errors.New("user identifier is required")
)
