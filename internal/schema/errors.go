package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrOrdering matches every *OrderingError.
	ErrOrdering = errors.New("ordering error")

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation error")

	// ErrApply matches every *ApplyError.
	ErrApply = errors.New("apply error")
)

// OrderingError is returned when an append names a predecessor that is not
// the current tip of the lineage, including a lost race on the same tip.
type OrderingError struct {
	Lineage  string
	Expected string // current tip, "" for an empty lineage
	Got      string // predecessor supplied by the caller
}

func (e *OrderingError) Error() string {
	expected := e.Expected
	if expected == "" {
		expected = "<root>"
	}
	got := e.Got
	if got == "" {
		got = "<root>"
	}
	return fmt.Sprintf("lineage %q: predecessor %s is not the current tip %s", e.Lineage, got, expected)
}

func (e *OrderingError) Is(target error) bool { return target == ErrOrdering }

// ValidationError is returned when a record's operations are malformed or
// inconsistent with the cumulative schema.
type ValidationError struct {
	Lineage string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("lineage %q: %s", e.Lineage, e.Reason)
	}
	return fmt.Sprintf("lineage %q: field %q: %s", e.Lineage, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ApplyError is returned when the store rejects a record's DDL. The record is
// rolled back as a unit.
type ApplyError struct {
	Lineage string
	Record  string
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("lineage %q: apply %s: %v", e.Lineage, e.Record, e.Err)
}

func (e *ApplyError) Is(target error) bool { return target == ErrApply }

func (e *ApplyError) Unwrap() error { return e.Err }

func invalid(lineage, field, format string, args ...any) *ValidationError {
	return &ValidationError{Lineage: lineage, Field: field, Reason: fmt.Sprintf(format, args...)}
}
