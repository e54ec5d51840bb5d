package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrPayloadTooLarge   = errors.New("payload too large")
	// ErrDuplicateTicket is returned by a ReportStore when ticket_id collides.
	ErrDuplicateTicket = errors.New("duplicate ticket id")
)

// ValidationError is a user-correctable input problem on one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// TransitionError reports a status precondition violation.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// UploadError describes one file that could not be stored. It is never
// returned as a top-level error.
type UploadError struct {
	File string `json:"file"`
	Err  error  `json:"-"`
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.File, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DependencyError wraps a failure of an external collaborator during the
// primary persistence step.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

func dependency(name string, err error) error {
	if err == nil {
		return nil
	}
	// Domain errors from the stores pass through untouched.
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrDuplicateTicket) {
		return err
	}
	return &DependencyError{Dependency: name, Err: err}
}
