package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared across the service and store layers. Callers classify
// failures with errors.Is and wrap them with operation context using %w.
var (
	// ErrNotFound indicates the requested identifier has no active record.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict on email or username.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation indicates a structural or field-level constraint violation.
	ErrValidation = errors.New("validation failed")
	// ErrConcurrency indicates an optimistic version mismatch on write.
	ErrConcurrency = errors.New("concurrent modification")
	// ErrLockTimeout indicates a pessimistic lock was not acquired in time.
	ErrLockTimeout = errors.New("lock timeout")
)

// ValidationError carries field-level messages for a rejected request.
// It unwraps to ErrValidation so errors.Is classification keeps working.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{Fields: make(map[string][]string)}
	v.Add(field, message)
	return v
}

// Add appends a message for the given field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UserSafeMessage returns a message suitable for API consumers. Known error
// kinds pass their message through; anything else collapses to a generic
// message so internals never leak.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConcurrency):
		return err.Error()
	case errors.Is(err, ErrLockTimeout):
		return "resource is busy, please retry"
	default:
		return "an unexpected error occurred"
	}
}
