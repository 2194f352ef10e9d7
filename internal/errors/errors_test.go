package errors

import (
	"fmt"
	"testing"
)

func TestAuditErrorMessage(t *testing.T) {
	err := NewAuditError(CodeJudgeError, "judge crashed", New("exit status 1"))
	want := "JudgeError: judge crashed: exit status 1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noCause := NewAuditError(CodeQueueFull, "queue at capacity", nil)
	if noCause.Error() != "QueueFull: queue at capacity" {
		t.Errorf("Error() = %q", noCause.Error())
	}
}

func TestAuditErrorUnwrap(t *testing.T) {
	cause := New("disk full")
	err := NewAuditError(CodePersistenceError, "journal write failed", cause)

	if Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
	if !Is(err, cause) {
		t.Error("Is should match the wrapped cause")
	}
}

func TestAuditErrorIsMatchesSentinel(t *testing.T) {
	err := NewAuditError(CodeJobTimeout, "deadline exceeded", ErrJobTimeout)
	if !Is(err, ErrJobTimeout) {
		t.Error("Is should match ErrJobTimeout through the AuditError wrapper")
	}
	if Is(err, ErrQueueFull) {
		t.Error("Is should not match unrelated sentinels")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"audit error", NewAuditError(CodeContextError, "no context", nil), CodeContextError},
		{"wrapped audit error", fmt.Errorf("outer: %w", NewAuditError(CodeJudgeError, "x", nil)), CodeJudgeError},
		{"sentinel queue full", fmt.Errorf("enqueue: %w", ErrQueueFull), CodeQueueFull},
		{"sentinel timeout", ErrJobTimeout, CodeJobTimeout},
		{"sentinel locked", ErrSessionLocked, CodeSessionLocked},
		{"unknown", New("boom"), CodeFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewAuditError(CodeJobTimeout, "slow judge", nil)) {
		t.Error("job timeouts should default to retryable")
	}
	if IsRetryable(NewAuditError(CodeInvalidThought, "empty artifact", nil)) {
		t.Error("validation failures should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil is not retryable")
	}

	forced := NewAuditError(CodeJudgeError, "permanent judge failure", nil).WithRetryable(false)
	if IsRetryable(forced) {
		t.Error("WithRetryable(false) should override the default")
	}
}

func TestIsFailFast(t *testing.T) {
	failFast := []error{
		NewAuditError(CodeInvalidThought, "bad", nil),
		fmt.Errorf("wrap: %w", ErrQueueFull),
		ErrSessionLocked,
	}
	for _, err := range failFast {
		if !IsFailFast(err) {
			t.Errorf("IsFailFast(%v) = false, want true", err)
		}
	}
	degraded := []error{
		NewAuditError(CodeJudgeError, "crash", nil),
		ErrJobTimeout,
		New("unexpected"),
	}
	for _, err := range degraded {
		if IsFailFast(err) {
			t.Errorf("IsFailFast(%v) = true, want false", err)
		}
	}
}
