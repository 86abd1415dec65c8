package rating

import (
	"fmt"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

const (
	MinStars = 1
	MaxStars = 5
)

// ErrInvalidStars is returned for ratings outside [1,5].
var ErrInvalidStars = fault.New(fault.KindInvalid, "rating: stars must be between 1 and 5")

// Validate checks a star value.
func Validate(stars int) error {
	if stars < MinStars || stars > MaxStars {
		return fmt.Errorf("%w: got %d", ErrInvalidStars, stars)
	}
	return nil
}

// Breakdown holds review counts per star value; index 0 is one star.
type Breakdown [MaxStars]int

// Count returns the reviews with the given star value.
func (b Breakdown) Count(stars int) int {
	if Validate(stars) != nil {
		return 0
	}
	return b[stars-1]
}

// Total is the number of reviews.
func (b Breakdown) Total() int {
	total := 0
	for _, c := range b {
		total += c
	}
	return total
}

// Points is sum(star * count).
func (b Breakdown) Points() int {
	points := 0
	for i, c := range b {
		points += (i + 1) * c
	}
	return points
}

// Map keys counts by star value for presentation.
func (b Breakdown) Map() map[int]int {
	out := make(map[int]int, MaxStars)
	for i, c := range b {
		out[i+1] = c
	}
	return out
}

// Average is points/total rounded to one decimal, half away from zero. The
// rounding happens once, in integer tenths, so the result depends only on
// the breakdown and never on the order ratings arrived in.
func Average(b Breakdown) float64 {
	total := b.Total()
	if total == 0 {
		return 0
	}
	tenths := (b.Points()*20 + total) / (2 * total)
	return float64(tenths) / 10
}

// Aggregate is a provider's rating distribution plus the version used for
// optimistic concurrency. An absent record is the zero Aggregate at version 0.
type Aggregate struct {
	ProviderID    string
	Breakdown     Breakdown
	TotalReviews  int
	Average       float64
	CompletedJobs int
	Version       int64
	UpdatedAt     time.Time
}

// Apply folds one rating into a. It bumps nothing but the breakdown-derived
// fields and CompletedJobs; the version is the store's concern.
func Apply(a Aggregate, stars int) (Aggregate, error) {
	if err := Validate(stars); err != nil {
		return a, err
	}
	a.Breakdown[stars-1]++
	a.TotalReviews = a.Breakdown.Total()
	a.Average = Average(a.Breakdown)
	a.CompletedJobs++
	return a, nil
}

// Reconcile rebuilds a provider's aggregate from its completed requests.
// Requests of other providers or in other states are ignored; a completed
// request without a valid rating counts as a job but not a review.
func Reconcile(providerID string, completed []request.ServiceRequest) Aggregate {
	agg := Aggregate{ProviderID: providerID}
	for _, r := range completed {
		if r.ProviderID != providerID || r.Status != request.StatusCompleted {
			continue
		}
		agg.CompletedJobs++
		if r.Rating != nil && Validate(*r.Rating) == nil {
			agg.Breakdown[*r.Rating-1]++
		}
	}
	agg.TotalReviews = agg.Breakdown.Total()
	agg.Average = Average(agg.Breakdown)
	return agg
}

// SameContent compares the derived data of two aggregates, ignoring version
// and timestamps.
func SameContent(a, b Aggregate) bool {
	return a.ProviderID == b.ProviderID &&
		a.Breakdown == b.Breakdown &&
		a.TotalReviews == b.TotalReviews &&
		a.Average == b.Average &&
		a.CompletedJobs == b.CompletedJobs
}

// Drift is the audit result comparing the stored aggregate against a recompute.
type Drift struct {
	Stored     Aggregate
	Recomputed Aggregate
	InSync     bool
}
