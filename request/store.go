package request

import (
	"context"
	"fmt"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
)

var (
	// ErrNotFound is returned when no request exists for the id.
	ErrNotFound = fault.New(fault.KindNotFound, "request: not found")
	// ErrNotPending is returned when an action needs a pending request.
	ErrNotPending = fault.New(fault.KindPrecondition, "request: not pending")
	// ErrExpired is returned when accepting a request past its deadline.
	ErrExpired = fault.New(fault.KindPrecondition, "request: expired")
	// ErrInvalidTransition is returned for edges outside the lifecycle.
	ErrInvalidTransition = fault.New(fault.KindPrecondition, "request: invalid transition")
	// ErrForbidden is returned when the actor is not the party allowed to act.
	ErrForbidden = fault.New(fault.KindForbidden, "request: actor not permitted")
	// ErrInvalid is returned for malformed create input.
	ErrInvalid = fault.New(fault.KindInvalid, "request: invalid input")
	// ErrDuplicate is returned when a request id is already taken.
	ErrDuplicate = fault.New(fault.KindConflict, "request: duplicate id")
	// ErrStale is returned by a store when a conditional transition matched no
	// row because the record moved on since it was read.
	ErrStale = fault.New(fault.KindConflict, "request: status changed concurrently")
)

// Change is a conditional status write: it applies only while the stored
// status still equals From and, when NotExpiredAt is set, while
// expires_at >= NotExpiredAt.
type Change struct {
	ID           string
	From         Status
	To           Status
	At           time.Time
	NotExpiredAt time.Time
}

// Apply checks the change's condition against current and returns the updated
// record. In-memory and document stores call it inside their own atomic
// section; the SQL store encodes the same condition in its WHERE clause.
func (c Change) Apply(current ServiceRequest) (ServiceRequest, error) {
	if err := c.Validate(); err != nil {
		return current, err
	}
	if current.Status != c.From {
		return current, ErrStale
	}
	if !c.NotExpiredAt.IsZero() && current.ExpiresAt.Before(c.NotExpiredAt) {
		return current, ErrStale
	}
	next := current
	Stamp(&next, c.To, c.At)
	return next, nil
}

// Validate rejects edges outside the lifecycle. Completion is excluded: it is
// only reachable through a rating commit.
func (c Change) Validate() error {
	if c.To == StatusCompleted || !CanTransition(c.From, c.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.From, c.To)
	}
	return nil
}

// Store is the document-store contract for service requests.
type Store interface {
	Create(ctx context.Context, r ServiceRequest) error
	Get(ctx context.Context, id string) (ServiceRequest, error)
	// ListByProvider returns the provider's requests, optionally restricted to statuses.
	ListByProvider(ctx context.Context, providerID string, statuses ...Status) ([]ServiceRequest, error)
	ListBySeeker(ctx context.Context, seekerID string, statuses ...Status) ([]ServiceRequest, error)
	// Transition atomically applies c and returns the stored result, or ErrStale.
	Transition(ctx context.Context, c Change) (ServiceRequest, error)
}

// MatchStatus reports whether s is in the filter set; an empty set matches all.
func MatchStatus(s Status, statuses []Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
