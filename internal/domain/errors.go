package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup of a referenced entity that does not exist.
// Callers wrap it with the entity kind and id.
var ErrNotFound = errors.New("record not found")

// ValidationError is malformed caller input. It aborts the operation before
// any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DependencyError wraps a failure of an external collaborator (calendar,
// payment, notification broker).
type DependencyError struct {
	Collaborator string
	Err          error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
