package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the import credential does not match the configured secret.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrQuestionNotFound is returned when no question matches an id or external key.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrRunNotFound indicates an import run is unknown or has expired.
	ErrRunNotFound = errors.New("import run not found")
	// ErrConstraintViolation is returned by stores when a write breaks a uniqueness or enum constraint.
	ErrConstraintViolation = errors.New("constraint violation")
)

// ValidationError rejects a single import record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// StorageError wraps a failed store call for a single import record.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
