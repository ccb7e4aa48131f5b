package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/stage"
)

// Common service errors. Typed errors below wrap one of these so callers can
// match with errors.Is.
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = stage.ErrInvalidInput

	// ErrConflict is returned when the stored version no longer matches
	ErrConflict = errors.New("resource conflict")

	// ErrStorage is returned when the database could not complete the operation
	ErrStorage = errors.New("storage unavailable")

	// ErrAuditFailure is returned when the activity log could not be written
	ErrAuditFailure = errors.New("audit failure")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError lists every field that blocks a change, in canonical order
type ValidationError = stage.ValidationError

// invalidField builds a single-field validation error
func invalidField(field, reason string) *ValidationError {
	return &ValidationError{Fields: []string{field}, Reasons: map[string]string{field: reason}}
}

// NotFoundError names the missing entity and the key it was looked up by
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(entity string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: id.String()}
}

// ConflictError reports an optimistic lock failure
type ConflictError struct {
	OfferID  uuid.UUID
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	if e.Actual > 0 {
		return fmt.Sprintf("offer %s was modified concurrently: expected version %d, found %d", e.OfferID, e.Expected, e.Actual)
	}
	return fmt.Sprintf("offer %s was modified concurrently: expected version %d", e.OfferID, e.Expected)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StorageError wraps a database failure that survived retries
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// AuditFailureError means the activity log could not be written and the whole
// transaction was rolled back
type AuditFailureError struct {
	Action domain.ActivityAction
	Err    error
}

func (e *AuditFailureError) Error() string {
	return fmt.Sprintf("failed to record %s activity: %v", e.Action, e.Err)
}

func (e *AuditFailureError) Unwrap() []error { return []error{ErrAuditFailure, e.Err} }
