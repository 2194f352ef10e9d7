// Package errors provides centralized error definitions and error handling
// utilities for the gavel audit engine. It defines domain-specific errors
// with stable codes, error constructors with context wrapping, and
// classification helpers.
//
// # Error Codes
//
// Every error kind carries a stable string code. Non-fatal errors are
// converted by the orchestrator into review warnings keyed by that code;
// no error kind ever crosses the public API as a panic or an unclassified
// failure.
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewAuditError(errors.CodeJudgeError, "judge crashed", cause)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrQueueFull) { ... }
//	if errors.CodeOf(err) == errors.CodeJobTimeout { ... }
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Code identifies an error kind with a stable string used in review
// metadata warnings. Codes never change once released; downstream
// consumers key remediation logic on them.
type Code string

const (
	// CodeInvalidThought marks input validation failures on a submitted thought.
	CodeInvalidThought Code = "InvalidThought"
	// CodeConfigWarning marks inline configuration parse or clamp issues.
	CodeConfigWarning Code = "ConfigWarning"
	// CodeContextError marks context builder failures (degraded context).
	CodeContextError Code = "ContextError"
	// CodeJobTimeout marks a per-job deadline expiry in the audit queue.
	CodeJobTimeout Code = "JobTimeout"
	// CodeJudgeError marks a judge crash or malformed judge output.
	CodeJudgeError Code = "JudgeError"
	// CodeQueueFull marks queue admission rejection under backpressure.
	CodeQueueFull Code = "QueueFull"
	// CodeQueueDestroyed marks jobs canceled by queue destruction.
	CodeQueueDestroyed Code = "QueueDestroyed"
	// CodeSessionLocked marks a submit against a completed or locked session.
	CodeSessionLocked Code = "SessionLocked"
	// CodePersistenceError marks session journal write failures.
	CodePersistenceError Code = "PersistenceError"
	// CodePersistenceDegraded marks the warning attached when the journal
	// could not be written but in-memory state advanced.
	CodePersistenceDegraded Code = "PersistenceDegraded"
	// CodeSanitizationLowConfidence marks sanitizer passes with low average
	// confidence; the result is kept.
	CodeSanitizationLowConfidence Code = "SanitizationLowConfidence"
	// CodeStagnationDetected is informational: the analyzer found the
	// session stagnating. Not a failure.
	CodeStagnationDetected Code = "StagnationDetected"
	// CodeFatal marks unexpected internal failures that were converted
	// into a fallback review.
	CodeFatal Code = "Fatal"
)

// Sentinel errors for fail-fast conditions surfaced directly to callers.
var (
	// ErrInvalidThought indicates the submitted thought failed validation.
	ErrInvalidThought = New("invalid thought")
	// ErrQueueFull indicates the queue rejected admission at capacity.
	ErrQueueFull = New("audit queue is full")
	// ErrQueueDestroyed indicates the queue was destroyed while the job was outstanding.
	ErrQueueDestroyed = New("audit queue destroyed")
	// ErrQueuePaused indicates a scheduling attempt against a paused queue.
	// Pausing does not reject admission; this is internal to the scheduler.
	ErrQueuePaused = New("audit queue paused")
	// ErrJobTimeout indicates a job exceeded its per-job deadline.
	ErrJobTimeout = New("audit job timed out")
	// ErrSessionLocked indicates the session is complete or held by another process.
	ErrSessionLocked = New("session is locked")
	// ErrSessionNotFound indicates the session does not exist in the store.
	ErrSessionNotFound = New("session not found")
	// ErrCacheMiss indicates the result cache has no live entry for the key.
	ErrCacheMiss = New("cache miss")
	// ErrJudgeFailed indicates the judge returned an error or unusable output.
	ErrJudgeFailed = New("judge failed")
)

// AuditError is the classified error type carried through the engine.
// It wraps an underlying cause, tags it with a stable code, and records
// whether a retry may succeed.
type AuditError struct {
	code      Code
	message   string
	cause     error
	retryable bool
}

// NewAuditError creates a classified error with the given code and message.
// The cause may be nil.
func NewAuditError(code Code, message string, cause error) *AuditError {
	return &AuditError{
		code:      code,
		message:   message,
		cause:     cause,
		retryable: defaultRetryable(code),
	}
}

// WithRetryable overrides the default retryability classification.
func (e *AuditError) WithRetryable(retryable bool) *AuditError {
	e.retryable = retryable
	return e
}

// Error returns the error message, including the cause when present.
func (e *AuditError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *AuditError) Unwrap() error {
	return e.cause
}

// Is reports whether this error matches the target, delegating to the cause.
func (e *AuditError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Code returns the stable code for this error.
func (e *AuditError) Code() Code {
	return e.code
}

// IsRetryable reports whether the operation may succeed on retry.
func (e *AuditError) IsRetryable() bool {
	return e.retryable
}

// defaultRetryable maps codes to their default retry classification.
// Timeouts, judge crashes, and persistence failures are transient;
// validation and admission failures are not.
func defaultRetryable(code Code) bool {
	switch code {
	case CodeJobTimeout, CodeJudgeError, CodePersistenceError, CodeContextError:
		return true
	default:
		return false
	}
}

// CodeOf extracts the stable code from any error. Errors that are not
// AuditErrors are classified by their sentinel identity, falling back
// to CodeFatal for unrecognized errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.code
	}
	switch {
	case errors.Is(err, ErrInvalidThought):
		return CodeInvalidThought
	case errors.Is(err, ErrQueueFull):
		return CodeQueueFull
	case errors.Is(err, ErrQueueDestroyed):
		return CodeQueueDestroyed
	case errors.Is(err, ErrJobTimeout):
		return CodeJobTimeout
	case errors.Is(err, ErrSessionLocked):
		return CodeSessionLocked
	case errors.Is(err, ErrJudgeFailed):
		return CodeJudgeError
	default:
		return CodeFatal
	}
}

// IsRetryable reports whether the error is transient and the operation may
// succeed on retry. Plain errors are classified via CodeOf.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.retryable
	}
	return defaultRetryable(CodeOf(err))
}

// IsFailFast reports whether the error should be surfaced to the caller
// immediately rather than degraded into a fallback review.
func IsFailFast(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidThought, CodeQueueFull, CodeSessionLocked:
		return true
	default:
		return false
	}
}
