package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")

	// ErrInvalidName is returned for collection names outside [a-z0-9_-]
	ErrInvalidName = errors.New("invalid collection name")
)

// ConflictError reports a write that would break a collection invariant,
// such as an empty or duplicated key.
type ConflictError struct {
	Collection string
	Field      string
	Value      any
	Reason     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s %q %s", e.Collection, e.Field, fmt.Sprint(e.Value), e.Reason)
}
