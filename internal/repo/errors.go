// Package repo implements the data persistence layer for domain entities.
// This file centralizes repository error values and the PersistenceError
// wrapper returned when a store write fails.
package repo

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = gorm.ErrRecordNotFound

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate")

	// ErrAlreadyFinalized is returned by Finalize when the message record
	// has already transitioned to processed.
	ErrAlreadyFinalized = errors.New("message already finalized")

	// ErrInvalidPeriod is returned when period_end is not after period_start.
	ErrInvalidPeriod = errors.New("period end must be after period start")

	// ErrInvalidItem is returned when an aggregate carries a negative
	// quantity or revenue, or lacks an item id.
	ErrInvalidItem = errors.New("invalid sales item")

	// ErrPersistence matches any *PersistenceError via errors.Is.
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError reports a failed store operation. Op names the
// repository call (e.g. "replace_period", "record_message").
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match any PersistenceError.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// isUniqueViolation detects duplicate-key errors across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value violates unique constraint")
}
