package request

import (
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
)

type Status string

const (
	StatusPending              Status = "pending"
	StatusAccepted             Status = "accepted"
	StatusRejected             Status = "rejected"
	StatusExpired              Status = "expired"
	StatusCancelled            Status = "cancelled"
	StatusInProgress           Status = "in_progress"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusCompleted            Status = "completed"
)

// Location is the district plus sub-district block a job takes place in.
type Location struct {
	District string
	Block    string
}

// ServiceRequest mirrors the service_requests table. It carries no JSON tags so
// every store and adapter maps it explicitly.
type ServiceRequest struct {
	ID          string
	SeekerID    string
	ProviderID  string
	Category    string
	Description string
	Location    Location
	Urgency     clock.Urgency
	Status      Status
	Rating      *int
	Review      string

	CreatedAt        time.Time
	ExpiresAt        time.Time
	AcceptedAt       *time.Time
	RejectedAt       *time.Time
	ExpiredAt        *time.Time
	CancelledAt      *time.Time
	StartedAt        *time.Time
	MarkedCompleteAt *time.Time
	ConfirmedAt      *time.Time
	UpdatedAt        time.Time
}

// Remaining reports the countdown to expiry at now.
func (r ServiceRequest) Remaining(now time.Time) clock.Remaining {
	return clock.Until(r.ExpiresAt, now)
}

// Overdue reports whether the request is still pending past its deadline and
// should be swept to expired.
func (r ServiceRequest) Overdue(now time.Time) bool {
	return r.Status == StatusPending && clock.IsExpired(r.ExpiresAt, now)
}

// Rated reports whether a rating has been attached.
func (r ServiceRequest) Rated() bool {
	return r.Rating != nil
}
