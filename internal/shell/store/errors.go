// Package store provides persistence for Skiff entities.
package store

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateID is returned when creating an entity with an existing ID.
	ErrDuplicateID = errors.New("entity with this ID already exists")

	// ErrDuplicateName is returned when creating a stack with an existing name.
	ErrDuplicateName = errors.New("stack with this name already exists")

	// ErrConnectionFailed is returned when database connection fails.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when database migration fails.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrInvalidData is returned when JSON serialization/deserialization fails.
	ErrInvalidData = errors.New("invalid data format")
)

// StoreError wraps errors with additional context.
type StoreError struct {
	Op      string // Operation that failed (e.g., "CreateStack")
	Entity  string // Entity type (e.g., "stack")
	ID      string // Entity ID if applicable
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
