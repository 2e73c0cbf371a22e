package schemas

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every typed error below reports itself as one of
// these through errors.Is.
var (
	// ErrFormat marks an input document that is structurally invalid.
	ErrFormat = errors.New("invalid document format")
	// ErrValidation marks a value that is outside its enumeration.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a report or instance that does not exist.
	ErrNotFound = errors.New("not found")
)

// FormatError describes why a document could not be decomposed.
type FormatError struct {
	// Path locates the offending value, e.g. "$" or "$.High".
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid document format at %s: %s", e.Path, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// ValidationError reports a field value that is not accepted.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
