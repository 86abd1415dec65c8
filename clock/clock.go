package clock

import (
	"fmt"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
)

// UrgentThreshold marks a live request as urgent once less time than this remains.
const UrgentThreshold = 30 * time.Minute

// Urgency is the coarse SLA bucket a seeker picks when creating a request.
type Urgency string

const (
	UrgencyOneHour  Urgency = "1h"
	UrgencyTwoHours Urgency = "2h"
	UrgencyOneDay   Urgency = "1d"
)

// ErrUnknownUrgency is returned for urgency classes outside the fixed table.
var ErrUnknownUrgency = fault.New(fault.KindInvalid, "clock: unknown urgency class")

var urgencyWindows = map[Urgency]time.Duration{
	UrgencyOneHour:  time.Hour,
	UrgencyTwoHours: 2 * time.Hour,
	UrgencyOneDay:   24 * time.Hour,
}

// Urgencies lists the valid classes in ascending window order.
func Urgencies() []Urgency {
	return []Urgency{UrgencyOneHour, UrgencyTwoHours, UrgencyOneDay}
}

// ParseUrgency validates a raw class string.
func ParseUrgency(raw string) (Urgency, error) {
	u := Urgency(raw)
	if _, ok := urgencyWindows[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUrgency, raw)
	}
	return u, nil
}

// Valid reports whether u is in the table.
func (u Urgency) Valid() bool {
	_, ok := urgencyWindows[u]
	return ok
}

// Duration returns the window for u.
func (u Urgency) Duration() (time.Duration, error) {
	d, ok := urgencyWindows[u]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUrgency, string(u))
	}
	return d, nil
}

// ExpiresAt applies the urgency window to a creation time.
func ExpiresAt(createdAt time.Time, u Urgency) (time.Time, error) {
	d, err := u.Duration()
	if err != nil {
		return time.Time{}, err
	}
	return createdAt.Add(d), nil
}

// Remaining is the structured countdown to a request's expiry.
type Remaining struct {
	Expired bool
	Hours   int
	Minutes int
	// Total is zero when Expired.
	Total time.Duration
}

// Expired is the value Until returns once the deadline has passed.
var Expired = Remaining{Expired: true}

// Until computes the time left before expiresAt. A request is expired iff
// now is strictly after expiresAt; the boundary instant itself is still live.
func Until(expiresAt, now time.Time) Remaining {
	if now.After(expiresAt) {
		return Expired
	}
	left := expiresAt.Sub(now)
	return Remaining{
		Hours:   int(left / time.Hour),
		Minutes: int((left % time.Hour) / time.Minute),
		Total:   left,
	}
}

// IsExpired is shorthand for Until(expiresAt, now).Expired.
func IsExpired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}

// Urgent reports whether a live countdown is under UrgentThreshold.
func (r Remaining) Urgent() bool {
	return !r.Expired && r.Total < UrgentThreshold
}

// TotalMinutes is the whole minutes left, or -1 when expired.
func (r Remaining) TotalMinutes() int {
	if r.Expired {
		return -1
	}
	return int(r.Total / time.Minute)
}

func (r Remaining) String() string {
	switch {
	case r.Expired:
		return "expired"
	case r.Hours > 0:
		return fmt.Sprintf("%dh %dm", r.Hours, r.Minutes)
	default:
		return fmt.Sprintf("%dm", r.Minutes)
	}
}
