package core

import (
	"errors"
	"fmt"
)

// ConfigurationError reports malformed or inconsistent declarative
// configuration. It is fatal and always surfaced before any task executes.
type ConfigurationError struct {
	Field  string // Offending field or identifier
	Reason string // Human-readable explanation
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error in %q: %s", e.Field, e.Reason)
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ToolNotFoundError reports a registry lookup for a name that was never
// registered. Fatal for the invoking task.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not registered", e.Tool)
}

// ToolInputError reports a payload that failed validation against a tool's
// input schema. The capability is never called; the error is not retried.
type ToolInputError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ToolInputError) Error() string {
	return fmt.Sprintf("tool %q: invalid input field %q: %s", e.Tool, e.Field, e.Reason)
}

// ToolOutputError reports a capability return value that does not conform to
// the tool's declared output schema. This guards downstream tasks against a
// misbehaving external dependency. Not retried.
type ToolOutputError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ToolOutputError) Error() string {
	return fmt.Sprintf("tool %q: invalid output field %q: %s", e.Tool, e.Field, e.Reason)
}

// ToolTransientError wraps an external dependency hiccup (network failure,
// upstream 5xx). The registry retries these with bounded backoff before
// giving up.
type ToolTransientError struct {
	Op  string // Operation or backend that failed
	Err error
}

func (e *ToolTransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *ToolTransientError) Unwrap() error { return e.Err }

// NewToolTransientError wraps err as retryable.
func NewToolTransientError(op string, err error) *ToolTransientError {
	return &ToolTransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a ToolTransientError.
func IsTransient(err error) bool {
	var te *ToolTransientError
	return errors.As(err, &te)
}

// NotFoundError reports the legitimate absence of a record (unknown
// indicator code, unresolved slug). It is not an engine failure and is never
// retried.
type NotFoundError struct {
	Kind string // Category of the missing record ("indicator", "talk", ...)
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// NewNotFoundError creates a NotFoundError for the given kind and key.
func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

// UnresolvedReferenceError reports an instruction template referencing a task
// that has no entry in the ExecutionContext. Given a valid topological order
// this indicates malformed task data or a planning bug; it is always fatal and
// the engine never emits a half-substituted instruction instead.
type UnresolvedReferenceError struct {
	Task      string // Task whose instruction referenced the missing result
	Reference string // The unresolved reference, e.g. "find_talk.results.0.slug"
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("task %q references %q which has no result", e.Task, e.Reference)
}
