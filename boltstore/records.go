package boltstore

import (
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

type requestRecord struct {
	ID               string     `json:"id"`
	SeekerID         string     `json:"seeker_id"`
	ProviderID       string     `json:"provider_id,omitempty"`
	Category         string     `json:"category"`
	Description      string     `json:"description,omitempty"`
	District         string     `json:"district"`
	Block            string     `json:"block,omitempty"`
	Urgency          string     `json:"urgency"`
	Status           string     `json:"status"`
	Rating           *int       `json:"rating,omitempty"`
	Review           string     `json:"review,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
	RejectedAt       *time.Time `json:"rejected_at,omitempty"`
	ExpiredAt        *time.Time `json:"expired_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	MarkedCompleteAt *time.Time `json:"marked_complete_at,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toRequestRecord(r request.ServiceRequest) requestRecord {
	return requestRecord{
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
		CreatedAt:        r.CreatedAt,
		ExpiresAt:        r.ExpiresAt,
		AcceptedAt:       r.AcceptedAt,
		RejectedAt:       r.RejectedAt,
		ExpiredAt:        r.ExpiredAt,
		CancelledAt:      r.CancelledAt,
		StartedAt:        r.StartedAt,
		MarkedCompleteAt: r.MarkedCompleteAt,
		ConfirmedAt:      r.ConfirmedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (rec requestRecord) domain() request.ServiceRequest {
	return request.ServiceRequest{
		ID:               rec.ID,
		SeekerID:         rec.SeekerID,
		ProviderID:       rec.ProviderID,
		Category:         rec.Category,
		Description:      rec.Description,
		Location:         request.Location{District: rec.District, Block: rec.Block},
		Urgency:          clock.Urgency(rec.Urgency),
		Status:           request.Status(rec.Status),
		Rating:           rec.Rating,
		Review:           rec.Review,
		CreatedAt:        rec.CreatedAt,
		ExpiresAt:        rec.ExpiresAt,
		AcceptedAt:       rec.AcceptedAt,
		RejectedAt:       rec.RejectedAt,
		ExpiredAt:        rec.ExpiredAt,
		CancelledAt:      rec.CancelledAt,
		StartedAt:        rec.StartedAt,
		MarkedCompleteAt: rec.MarkedCompleteAt,
		ConfirmedAt:      rec.ConfirmedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

type aggregateRecord struct {
	ProviderID    string    `json:"provider_id"`
	Breakdown     [5]int    `json:"breakdown"`
	TotalReviews  int       `json:"total_reviews"`
	Average       float64   `json:"average"`
	CompletedJobs int       `json:"completed_jobs"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toAggregateRecord(a rating.Aggregate) aggregateRecord {
	return aggregateRecord{
		ProviderID:    a.ProviderID,
		Breakdown:     a.Breakdown,
		TotalReviews:  a.TotalReviews,
		Average:       a.Average,
		CompletedJobs: a.CompletedJobs,
		Version:       a.Version,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (rec aggregateRecord) domain() rating.Aggregate {
	return rating.Aggregate{
		ProviderID:    rec.ProviderID,
		Breakdown:     rating.Breakdown(rec.Breakdown),
		TotalReviews:  rec.TotalReviews,
		Average:       rec.Average,
		CompletedJobs: rec.CompletedJobs,
		Version:       rec.Version,
		UpdatedAt:     rec.UpdatedAt,
	}
}
