package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

var errNotPending = New(KindPrecondition, "request: not pending")

func TestKindOf_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("request: accept r-1: %w", errNotPending)

	if !errors.Is(err, errNotPending) {
		t.Fatalf("expected errors.Is to match sentinel")
	}
	if KindOf(err) != KindPrecondition {
		t.Fatalf("expected precondition, got %s", KindOf(err))
	}
	if Retryable(err) {
		t.Fatalf("precondition must not be retryable")
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindUnknown {
		t.Fatalf("expected unknown kind for plain error")
	}
	if Is(nil, KindUnknown) {
		t.Fatalf("nil error must not match any kind")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(KindUnavailable, "x", nil) != nil {
		t.Fatalf("wrapping nil must return nil")
	}
	base := errors.New("dial tcp: refused")
	err := Wrap(KindUnavailable, "request: get", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected underlying error in chain")
	}
	if !Retryable(err) {
		t.Fatalf("unavailable must be retryable")
	}
	if got := err.Error(); got != "request: get: dial tcp: refused" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, func(context.Context) error {
		calls++
		return errNotPending
	})
	if !errors.Is(err, errNotPending) {
		t.Fatalf("expected sentinel back, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetry_RetriesConflicts(t *testing.T) {
	conflict := New(KindConflict, "rating: version changed")
	calls := 0
	err := Retry(context.Background(), 4, func(context.Context) error {
		calls++
		if calls < 3 {
			return conflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	conflict := New(KindConflict, "rating: version changed")
	calls := 0
	err := Retry(context.Background(), 2, func(context.Context) error {
		calls++
		return conflict
	})
	if !errors.Is(err, conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}
