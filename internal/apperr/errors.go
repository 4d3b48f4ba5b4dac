// Package apperr defines the orchestrator's error taxonomy: validation,
// not-found, storage, plugin (extract/load) and cancellation errors. Plugin
// errors carry a Retryable verdict that the Task Runner's retry loop
// consults directly instead of pattern-matching on error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Retryable is implemented by errors that know whether a retry is worth
// attempting. Errors that don't implement it are treated as non-retryable.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err should be retried per the Task Runner's
// policy: only ExtractError/LoadError with Transient=true are retryable.
func IsRetryable(err error) bool {
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// ValidationError signals malformed input: an empty job name, an invalid
// cron expression, an unknown plugin type. Never retryable.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
func (e *ValidationError) Retryable() bool { return false }

// NewValidationError constructs a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError signals that a referenced entity (job, run) does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// StorageError wraps a database driver error. Retryable at the call site
// only when the call is idempotent (the claim loop retries on its own
// schedule regardless; this marks the error for callers that want to know).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err with the operation name that failed, or returns
// nil if err is nil (so call sites can write `return NewStorageError(...)`
// unconditionally after an `if err != nil` check without double-wrapping).
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// ExtractError is an extractor-plugin failure. Transient failures (network
// timeout, upstream 5xx, filesystem EAGAIN) are retryable; permanent
// failures (malformed data, schema mismatch, auth failure) are not.
type ExtractError struct {
	Plugin    string
	Err       error
	Transient bool
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract(%s): %v", e.Plugin, e.Err)
}
func (e *ExtractError) Unwrap() error    { return e.Err }
func (e *ExtractError) Retryable() bool { return e.Transient }

// LoadError is a loader-plugin failure, with the same transient/permanent
// split as ExtractError.
type LoadError struct {
	Plugin    string
	Err       error
	Transient bool
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load(%s): %v", e.Plugin, e.Err)
}
func (e *LoadError) Unwrap() error    { return e.Err }
func (e *LoadError) Retryable() bool { return e.Transient }

// UnknownPluginError is a ValidationError variant naming the unrecognized
// plugin `type` discriminant, surfaced verbatim in a failed run's
// error_message per spec.md §8's boundary-behavior table.
func UnknownPluginError(kind, pluginType string) *ValidationError {
	return NewValidationError("unknown plugin: %s type %q is not registered", kind, pluginType)
}

// CancelledError is emitted when a shutdown interrupts an in-flight task.
// The run is left running; the Scheduler reclassifies it as orphaned on the
// next startup.
type CancelledError struct {
	RunID string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run %s cancelled: orchestrator shutting down", e.RunID)
}
