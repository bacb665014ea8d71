package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrStorage      = errors.New("storage failure")
)

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Field, e.Message)
}

// Is matches ErrValidation.
func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateKeyError reports a unique key collision.
type DuplicateKeyError struct {
	Entity EntityType
	Field  string
	Value  string
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

// Is matches ErrDuplicateKey.
func (e DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// NotFoundError is returned when an operation targets an unknown id.
type NotFoundError struct {
	Entity EntityType
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a business rule collision between records.
type ConflictError struct {
	Entity  EntityType
	Message string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Entity, e.Message)
}

// Is matches ErrConflict.
func (e ConflictError) Is(target error) bool { return target == ErrConflict }

// InvalidStateError reports an operation the record's current state forbids.
type InvalidStateError struct {
	Entity  EntityType
	ID      int64
	State   string
	Message string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s %d is %s: %s", e.Entity, e.ID, e.State, e.Message)
}

// Is matches ErrInvalidState.
func (e InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// StorageError wraps a failure of the underlying engine.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap exposes the engine error.
func (e StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorage.
func (e StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err as a StorageError unless it is nil or already typed.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrValidation, ErrDuplicateKey, ErrNotFound, ErrConflict, ErrInvalidState, ErrStorage} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var ruleErr RuleViolationError
	if errors.As(err, &ruleErr) {
		return err
	}
	return StorageError{Op: op, Err: err}
}
