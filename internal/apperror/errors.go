package apperror

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a missing transaction or configuration row.
var ErrNotFound = errors.New("record not found")

// ProtectedFieldError is returned when a caller attempts to configure one of
// the fixed protected evidence field names.
type ProtectedFieldError struct {
	FieldName string
}

func (e *ProtectedFieldError) Error() string {
	return fmt.Sprintf("field '%s' is a protected evidence field and cannot be configured", e.FieldName)
}

// DuplicateConfigError is returned when an active configuration already
// exists for the same scope key.
type DuplicateConfigError struct {
	FieldName string
	Stage     int
}

func (e *DuplicateConfigError) Error() string {
	return fmt.Sprintf("an active configuration for field '%s' already exists at stage %d", e.FieldName, e.Stage)
}

// PinnedFieldError is returned when a caller attempts to relocate a
// business-critical field away from its stage.
type PinnedFieldError struct {
	FieldName string
	Stage     int
}

func (e *PinnedFieldError) Error() string {
	return fmt.Sprintf("field '%s' is business-critical at stage %d and cannot be moved", e.FieldName, e.Stage)
}
