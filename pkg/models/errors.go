package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds shared by the graph model, the execution ledger and the run scheduler.
var (
	// ErrValidation indicates malformed caller input (400 class).
	ErrValidation = errors.New("validation error")

	// ErrInvariantViolation indicates a structural rule of the graph, ledger or scheduler was broken.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrInvalidTransition indicates a state machine transition from an illegal state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEntity indicates a uniqueness rule was violated.
	ErrDuplicateEntity = errors.New("duplicate entity")
)

// DomainError carries one of the error kinds above together with a message and optional metadata.
type DomainError struct {
	Kind     error
	Code     string
	Message  string
	Metadata map[string]any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

// Is implements error comparison against the error kinds.
func (e *DomainError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newError(kind error, format string, args ...any) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewValidationError creates a ValidationError.
func NewValidationError(format string, args ...any) *DomainError {
	return newError(ErrValidation, format, args...)
}

// NewInvariantViolation creates an InvariantViolationError.
func NewInvariantViolation(format string, args ...any) *DomainError {
	return newError(ErrInvariantViolation, format, args...)
}

// NewInvalidTransition creates an InvalidTransitionError.
func NewInvalidTransition(format string, args ...any) *DomainError {
	return newError(ErrInvalidTransition, format, args...)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(format string, args ...any) *DomainError {
	return newError(ErrNotFound, format, args...)
}

// NewDuplicateError creates a DuplicateEntityError.
func NewDuplicateError(format string, args ...any) *DomainError {
	return newError(ErrDuplicateEntity, format, args...)
}

// WithCode attaches a machine readable code.
func (e *DomainError) WithCode(code string) *DomainError {
	e.Code = code

	return e
}

// WithMetadata attaches a metadata entry.
func (e *DomainError) WithMetadata(key string, value any) *DomainError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}

	e.Metadata[key] = value

	return e
}

// IsValidation checks if an error is a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvariantViolation checks if an error is an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsInvalidTransition checks if an error is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if an error is a DuplicateEntityError.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateEntity)
}

// CodeOf returns the code attached to a DomainError anywhere in the chain.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return ""
}

func requireNonBlank(value, label string) (string, error) {
	if value == "" {
		return "", NewValidationError("%s is required", label)
	}

	if strings.TrimSpace(value) == "" {
		return "", NewValidationError("%s must contain a non-whitespace character", label)
	}

	return value, nil
}
