// Package apperr defines the error taxonomy used across the coprocessor so
// every layer — transport, router, analyzer, storage — reports failures in
// a shape the JSON-RPC transport can map to a wire error without losing the
// underlying cause.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies the kind of failure independent of its message, letting
// callers branch on Is/Code without string matching.
type Code string

const (
	CodeInvalidArgument   Code = "invalid_argument"
	CodeUnauthenticated   Code = "unauthenticated"
	CodePermissionDenied  Code = "permission_denied"
	CodeNotFound          Code = "not_found"
	CodeFailedPrecondition Code = "failed_precondition"
	CodeInternal          Code = "internal"
	CodeUnavailable       Code = "unavailable"
	CodeDeadlineExceeded  Code = "deadline_exceeded"
)

// Severity distinguishes operator-actionable failures from routine ones so
// logging and telemetry can filter noise without dropping incidents.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is the coprocessor's canonical error type. Field carries the
// offending request field when applicable (e.g. a path argument), Details
// carries machine-readable extras (e.g. the violated invariant name).
type Error struct {
	Code     Code
	Message  string
	Field    string
	Details  map[string]any
	Severity Severity
	Cause    error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error at error severity.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Severity: SeverityError}
}

// NewWithField creates an Error tied to a specific request field.
func NewWithField(code Code, field, message string) *Error {
	return &Error{Code: code, Message: message, Field: field, Severity: SeverityError}
}

// NewWarning creates an Error at warning severity, for conditions the
// caller should see but that do not represent an operational incident.
func NewWarning(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Severity: SeverityWarning}
}

// NewCritical creates an Error at critical severity.
func NewCritical(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Severity: SeverityCritical}
}

// Wrap attaches code and message to an existing error, preserving it as
// Cause for Unwrap/errors.Is chains.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Severity: SeverityError}
}

// WithDetails returns a copy of e with Details merged in.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// WithField returns a copy of e tied to field.
func (e *Error) WithField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

// WithSeverity returns a copy of e at the given severity.
func (e *Error) WithSeverity(sev Severity) *Error {
	cp := *e
	cp.Severity = sev
	return &cp
}

// Is reports whether err is an *Error with the given code, unwrapping as
// needed so a wrapped apperr.Error still matches.
func Is(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// CodeOf extracts the Code of err, or CodeInternal if err is not an *Error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// ValidationErrors accumulates multiple field-level failures from a single
// validation pass (e.g. the path validator checking several segments of an
// argument) so the caller can report all of them at once.
type ValidationErrors struct {
	Errors   []*Error
	Warnings []*Error
}

// Add appends err, routing it into Errors or Warnings by its severity.
func (v *ValidationErrors) Add(err *Error) {
	if err.Severity == SeverityWarning {
		v.Warnings = append(v.Warnings, err)
		return
	}
	v.Errors = append(v.Errors, err)
}

// AddError appends a new error-severity entry built from code/message.
func (v *ValidationErrors) AddError(code Code, message string) {
	v.Add(New(code, message))
}

// AddErrorWithField appends a new error-severity entry tied to a field.
func (v *ValidationErrors) AddErrorWithField(code Code, field, message string) {
	v.Add(NewWithField(code, field, message))
}

// AddWarning appends a new warning-severity entry.
func (v *ValidationErrors) AddWarning(code Code, message string) {
	v.Add(NewWarning(code, message))
}

// HasErrors reports whether any error-severity entry was recorded.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// HasWarnings reports whether any warning-severity entry was recorded.
func (v *ValidationErrors) HasWarnings() bool {
	return len(v.Warnings) > 0
}

// IsValid reports whether no error-severity entries were recorded;
// warnings alone do not make the subject invalid.
func (v *ValidationErrors) IsValid() bool {
	return !v.HasErrors()
}

// Merge appends all errors and warnings from other into v.
func (v *ValidationErrors) Merge(other *ValidationErrors) {
	if other == nil {
		return
	}
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}

// ErrorMessages returns the Message of each error-severity entry.
func (v *ValidationErrors) ErrorMessages() []string {
	msgs := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		msgs[i] = e.Message
	}
	return msgs
}

// WarningMessages returns the Message of each warning-severity entry.
func (v *ValidationErrors) WarningMessages() []string {
	msgs := make([]string, len(v.Warnings))
	for i, e := range v.Warnings {
		msgs[i] = e.Message
	}
	return msgs
}
