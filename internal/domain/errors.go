package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the workflow taxonomy. Typed constructors below attach
// context while keeping errors.Is matching on the sentinels.
var (
	ErrNotFound               = errors.New("entity not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrForbidden              = errors.New("forbidden")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrMalformedEvent         = errors.New("malformed event")
	ErrValidation             = errors.New("validation failed")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type InvalidTransitionError struct {
	From Status
	To   Status
}

func NewInvalidTransitionError(from, to Status) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type ForbiddenError struct {
	Reason string
}

func NewForbiddenError(reason string) *ForbiddenError {
	return &ForbiddenError{Reason: reason}
}

func (e *ForbiddenError) Error() string { return "forbidden: " + e.Reason }

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

type ConcurrentModificationError struct {
	Entity string
	ID     string
}

func NewConcurrentModificationError(entity, id string) *ConcurrentModificationError {
	return &ConcurrentModificationError{Entity: entity, ID: id}
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s: conditional write lost", e.Entity, e.ID)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

type StoreUnavailableError struct {
	Op    string
	Cause error
}

func NewStoreUnavailableError(op string, cause error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Cause: cause}
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Cause)
}

func (e *StoreUnavailableError) Unwrap() error { return ErrStoreUnavailable }

type MalformedEventError struct {
	DetailType string
	Field      string
}

func NewMalformedEventError(detailType, field string) *MalformedEventError {
	return &MalformedEventError{DetailType: detailType, Field: field}
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: missing %s", e.DetailType, e.Field)
}

func (e *MalformedEventError) Unwrap() error { return ErrMalformedEvent }

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
