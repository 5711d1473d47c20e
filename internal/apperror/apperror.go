// Package apperror defines the error kinds callers of the catalog can tell apart.
package apperror

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError reports inputs rejected before any statement ran.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// NewValidationError builds a ValidationError from a formatted problem.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

// SchemaCompatibilityError means the store lacks the tables or columns the catalog needs.
type SchemaCompatibilityError struct {
	Detail string
}

func (e *SchemaCompatibilityError) Error() string {
	return "incompatible schema: " + e.Detail
}

type IdentifierExhaustionError struct {
	Attempts int
	Last     int64
}

func (e *IdentifierExhaustionError) Error() string {
	return fmt.Sprintf("no free recipe id after %d attempts (last candidate %d)", e.Attempts, e.Last)
}

// TimeoutError is returned when an operation exceeds its own deadline.
// It is distinct from transport failures and from caller cancellation.
type TimeoutError struct {
	Op    string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

type AggregationPreconditionError struct {
	MenuID int64
}

func (e *AggregationPreconditionError) Error() string {
	return fmt.Sprintf("menu %d has no items to build a shopping list from", e.MenuID)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
