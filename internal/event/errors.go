package event

import "errors"

var (
	ErrInvalidEventType = errors.New("invalid event type")

	ErrInvalidEventData = errors.New("invalid event data")

	ErrEmptyBatch = errors.New("no events provided")
)
