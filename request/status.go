package request

import "time"

var transitions = map[Status][]Status{
	StatusPending:              {StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
	StatusAccepted:             {StatusInProgress, StatusAwaitingConfirmation},
	StatusInProgress:           {StatusAwaitingConfirmation},
	StatusAwaitingConfirmation: {StatusCompleted},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusExpired, StatusCancelled,
		StatusInProgress, StatusAwaitingConfirmation, StatusCompleted:
		return true
	default:
		return false
	}
}

// TimestampColumn names the per-transition timestamp column stamped when a
// request enters s. Pending has none.
func TimestampColumn(s Status) string {
	switch s {
	case StatusAccepted:
		return "accepted_at"
	case StatusRejected:
		return "rejected_at"
	case StatusExpired:
		return "expired_at"
	case StatusCancelled:
		return "cancelled_at"
	case StatusInProgress:
		return "started_at"
	case StatusAwaitingConfirmation:
		return "marked_complete_at"
	case StatusCompleted:
		return "confirmed_at"
	default:
		return ""
	}
}

// Stamp sets the status and the matching transition timestamp on r.
func Stamp(r *ServiceRequest, to Status, at time.Time) {
	t := at
	switch to {
	case StatusAccepted:
		r.AcceptedAt = &t
	case StatusRejected:
		r.RejectedAt = &t
	case StatusExpired:
		r.ExpiredAt = &t
	case StatusCancelled:
		r.CancelledAt = &t
	case StatusInProgress:
		r.StartedAt = &t
	case StatusAwaitingConfirmation:
		r.MarkedCompleteAt = &t
	case StatusCompleted:
		r.ConfirmedAt = &t
	}
	r.Status = to
	r.UpdatedAt = at
}
