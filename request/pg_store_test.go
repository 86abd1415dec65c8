package request

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRowID(t *testing.T) {
	if _, ok := RowID("6f1c2a9e-4b7d-4e0a-9a51-3c2d8e7f1b40"); !ok {
		t.Fatalf("expected canonical uuid to parse")
	}
	if _, ok := RowID(strings.ToUpper("6f1c2a9e-4b7d-4e0a-9a51-3c2d8e7f1b40")); !ok {
		t.Fatalf("expected upper-case uuid to parse")
	}
	for _, id := range []string{"", "r-1", "not-a-uuid", "6f1c2a9e-4b7d-4e0a-9a51"} {
		if _, ok := RowID(id); ok {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
}

// A malformed id never reaches the database.
func TestPGStore_MalformedIDShortCircuits(t *testing.T) {
	store := NewPGStore(nil)
	ctx := context.Background()

	if _, err := store.Get(ctx, "r-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	change := Change{ID: "r-1", From: StatusPending, To: StatusAccepted, At: time.Now(), NotExpiredAt: time.Now()}
	if _, err := store.Transition(ctx, change); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}
