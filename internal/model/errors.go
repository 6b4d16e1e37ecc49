package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrorKind is the structured error category exposed at the API boundary.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindInvalidTransition   ErrorKind = "invalid_transition"
	KindConflict            ErrorKind = "conflict"
	KindDivisionByZero      ErrorKind = "division_by_zero"
	KindRecalculationFailed ErrorKind = "recalculation_failed"
	KindInternal            ErrorKind = "internal"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = eris.New("not found")
	// ErrInvalidTransition is returned for state changes the lifecycle forbids.
	ErrInvalidTransition = eris.New("invalid state transition")
	// ErrConflict is returned when a write loses to a concurrent writer.
	ErrConflict = eris.New("conflict")
	// ErrDivisionByZero marks a variance whose predicted value was zero.
	ErrDivisionByZero = eris.New("division by zero")
)

// FieldError describes one invalid intake field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found in one input.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field problem.
func (e *ValidationError) Add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// OrNil returns e when it holds at least one field error, otherwise nil.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// RecalculationError is recorded on a failed recalculation job.
type RecalculationError struct {
	JobID string
	Err   error
}

func (e *RecalculationError) Error() string {
	return fmt.Sprintf("recalculation job %s failed: %v", e.JobID, e.Err)
}

func (e *RecalculationError) Unwrap() error { return e.Err }

// KindOf maps an error to its boundary kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var re *RecalculationError
	if errors.As(err, &re) {
		return KindRecalculationFailed
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrDivisionByZero):
		return KindDivisionByZero
	}
	return KindInternal
}
