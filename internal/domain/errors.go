package domain

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
)

// ValidationError reports caller-supplied data that failed a required-field
// or positivity check.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ReferenceError reports an operation against a pin or entry that no longer
// exists.
type ReferenceError struct {
	Kind string
	ID   int64
}

func (e *ReferenceError) Error() string {
	if e.Kind == "pin" {
		return "pin no longer exists, please drop a new pin"
	}
	return fmt.Sprintf("%s %d no longer exists", e.Kind, e.ID)
}

func PinNotFound(id int64) *ReferenceError   { return &ReferenceError{Kind: "pin", ID: id} }
func EntryNotFound(id int64) *ReferenceError { return &ReferenceError{Kind: "entry", ID: id} }

// StorageError wraps a failed photo upload, delete or sign call.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("photo %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PersistenceError wraps a rejected read or write against the data store.
// Detail carries whatever diagnostics the store exposed.
type PersistenceError struct {
	Op     string
	Detail string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Detail)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError builds a PersistenceError, joining the store's message
// and result code with " | " when the driver exposes them.
func NewPersistenceError(op string, err error) *PersistenceError {
	parts := []string{err.Error()}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		parts = append(parts, fmt.Sprintf("code %d", sqliteErr.Code()))
	}
	return &PersistenceError{Op: op, Detail: strings.Join(parts, " | "), Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsReference(err error) bool {
	var target *ReferenceError
	return errors.As(err, &target)
}

func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
