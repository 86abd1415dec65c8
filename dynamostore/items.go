package dynamostore

import (
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// timeLayout has fixed-width fractions so that stored timestamps compare
// lexically in condition expressions.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t.UTC()
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

type requestItem struct {
	ID               string `dynamodbav:"id"`
	SeekerID         string `dynamodbav:"seeker_id"`
	ProviderID       string `dynamodbav:"provider_id,omitempty"`
	Category         string `dynamodbav:"category"`
	Description      string `dynamodbav:"description,omitempty"`
	District         string `dynamodbav:"district"`
	Block            string `dynamodbav:"block,omitempty"`
	Urgency          string `dynamodbav:"urgency"`
	Status           string `dynamodbav:"status"`
	Rating           *int   `dynamodbav:"rating,omitempty"`
	Review           string `dynamodbav:"review,omitempty"`
	CreatedAt        string `dynamodbav:"created_at"`
	ExpiresAt        string `dynamodbav:"expires_at"`
	AcceptedAt       string `dynamodbav:"accepted_at,omitempty"`
	RejectedAt       string `dynamodbav:"rejected_at,omitempty"`
	ExpiredAt        string `dynamodbav:"expired_at,omitempty"`
	CancelledAt      string `dynamodbav:"cancelled_at,omitempty"`
	StartedAt        string `dynamodbav:"started_at,omitempty"`
	MarkedCompleteAt string `dynamodbav:"marked_complete_at,omitempty"`
	ConfirmedAt      string `dynamodbav:"confirmed_at,omitempty"`
	UpdatedAt        string `dynamodbav:"updated_at"`
}

func toRequestItem(r request.ServiceRequest) requestItem {
	return requestItem{
		ID:               r.ID,
		SeekerID:         r.SeekerID,
		ProviderID:       r.ProviderID,
		Category:         r.Category,
		Description:      r.Description,
		District:         r.Location.District,
		Block:            r.Location.Block,
		Urgency:          string(r.Urgency),
		Status:           string(r.Status),
		Rating:           r.Rating,
		Review:           r.Review,
		CreatedAt:        formatTime(r.CreatedAt),
		ExpiresAt:        formatTime(r.ExpiresAt),
		AcceptedAt:       formatTimePtr(r.AcceptedAt),
		RejectedAt:       formatTimePtr(r.RejectedAt),
		ExpiredAt:        formatTimePtr(r.ExpiredAt),
		CancelledAt:      formatTimePtr(r.CancelledAt),
		StartedAt:        formatTimePtr(r.StartedAt),
		MarkedCompleteAt: formatTimePtr(r.MarkedCompleteAt),
		ConfirmedAt:      formatTimePtr(r.ConfirmedAt),
		UpdatedAt:        formatTime(r.UpdatedAt),
	}
}

func (it requestItem) domain() request.ServiceRequest {
	return request.ServiceRequest{
		ID:               it.ID,
		SeekerID:         it.SeekerID,
		ProviderID:       it.ProviderID,
		Category:         it.Category,
		Description:      it.Description,
		Location:         request.Location{District: it.District, Block: it.Block},
		Urgency:          clock.Urgency(it.Urgency),
		Status:           request.Status(it.Status),
		Rating:           it.Rating,
		Review:           it.Review,
		CreatedAt:        parseTime(it.CreatedAt),
		ExpiresAt:        parseTime(it.ExpiresAt),
		AcceptedAt:       parseTimePtr(it.AcceptedAt),
		RejectedAt:       parseTimePtr(it.RejectedAt),
		ExpiredAt:        parseTimePtr(it.ExpiredAt),
		CancelledAt:      parseTimePtr(it.CancelledAt),
		StartedAt:        parseTimePtr(it.StartedAt),
		MarkedCompleteAt: parseTimePtr(it.MarkedCompleteAt),
		ConfirmedAt:      parseTimePtr(it.ConfirmedAt),
		UpdatedAt:        parseTime(it.UpdatedAt),
	}
}

type aggregateItem struct {
	ProviderID    string  `dynamodbav:"provider_id"`
	Breakdown     []int   `dynamodbav:"breakdown"`
	TotalReviews  int     `dynamodbav:"total_reviews"`
	Average       float64 `dynamodbav:"average"`
	CompletedJobs int     `dynamodbav:"completed_jobs"`
	Version       int64   `dynamodbav:"version"`
	UpdatedAt     string  `dynamodbav:"updated_at"`
}

func toAggregateItem(a rating.Aggregate) aggregateItem {
	return aggregateItem{
		ProviderID:    a.ProviderID,
		Breakdown:     a.Breakdown[:],
		TotalReviews:  a.TotalReviews,
		Average:       a.Average,
		CompletedJobs: a.CompletedJobs,
		Version:       a.Version,
		UpdatedAt:     formatTime(a.UpdatedAt),
	}
}

func (it aggregateItem) domain() rating.Aggregate {
	agg := rating.Aggregate{
		ProviderID:    it.ProviderID,
		TotalReviews:  it.TotalReviews,
		Average:       it.Average,
		CompletedJobs: it.CompletedJobs,
		Version:       it.Version,
		UpdatedAt:     parseTime(it.UpdatedAt),
	}
	copy(agg.Breakdown[:], it.Breakdown)
	return agg
}
