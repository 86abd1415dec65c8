package httpapi

import (
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/feed"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

type createRequestBody struct {
	ProviderID  string `json:"provider_id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	District    string `json:"district"`
	Block       string `json:"block"`
	Urgency     string `json:"urgency"`
}

type ratingBody struct {
	Stars  int    `json:"stars"`
	Review string `json:"review"`
}

type locationResponse struct {
	District string `json:"district"`
	Block    string `json:"block,omitempty"`
}

type remainingResponse struct {
	Expired      bool   `json:"expired"`
	Hours        int    `json:"hours"`
	Minutes      int    `json:"minutes"`
	TotalMinutes int    `json:"total_minutes"`
	Label        string `json:"label"`
	Urgent       bool   `json:"urgent"`
}

type requestResponse struct {
	ID               string             `json:"id"`
	SeekerID         string             `json:"seeker_id"`
	ProviderID       string             `json:"provider_id,omitempty"`
	Category         string             `json:"category"`
	Description      string             `json:"description,omitempty"`
	Location         locationResponse   `json:"location"`
	Urgency          string             `json:"urgency"`
	Status           string             `json:"status"`
	Rating           *int               `json:"rating,omitempty"`
	Review           string             `json:"review,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	ExpiresAt        time.Time          `json:"expires_at"`
	Remaining        *remainingResponse `json:"remaining,omitempty"`
	AcceptedAt       *time.Time         `json:"accepted_at,omitempty"`
	RejectedAt       *time.Time         `json:"rejected_at,omitempty"`
	ExpiredAt        *time.Time         `json:"expired_at,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	MarkedCompleteAt *time.Time         `json:"marked_complete_at,omitempty"`
	ConfirmedAt      *time.Time         `json:"confirmed_at,omitempty"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func toRemaining(rem clock.Remaining) *remainingResponse {
	return &remainingResponse{
		Expired:      rem.Expired,
		Hours:        rem.Hours,
		Minutes:      rem.Minutes,
		TotalMinutes: rem.TotalMinutes(),
		Label:        rem.String(),
		Urgent:       rem.Urgent(),
	}
}

// toRequestResponse renders r; the countdown is included while it is pending.
func toRequestResponse(r request.ServiceRequest, now time.Time) requestResponse {
	resp := requestResponse{
		ID:               r.ID,
		SeekerID:         r.SeekerID,
		ProviderID:       r.ProviderID,
		Category:         r.Category,
		Description:      r.Description,
		Location:         locationResponse{District: r.Location.District, Block: r.Location.Block},
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
	if r.Status == request.StatusPending {
		resp.Remaining = toRemaining(r.Remaining(now))
	}
	return resp
}

type aggregateResponse struct {
	ProviderID    string      `json:"provider_id"`
	Breakdown     map[int]int `json:"breakdown"`
	TotalReviews  int         `json:"total_reviews"`
	Average       float64     `json:"average"`
	CompletedJobs int         `json:"completed_jobs"`
	Version       int64       `json:"version"`
	UpdatedAt     *time.Time  `json:"updated_at,omitempty"`
}

func toAggregateResponse(a rating.Aggregate) aggregateResponse {
	resp := aggregateResponse{
		ProviderID:    a.ProviderID,
		Breakdown:     a.Breakdown.Map(),
		TotalReviews:  a.TotalReviews,
		Average:       a.Average,
		CompletedJobs: a.CompletedJobs,
		Version:       a.Version,
	}
	if !a.UpdatedAt.IsZero() {
		t := a.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

type driftResponse struct {
	InSync     bool              `json:"in_sync"`
	Stored     aggregateResponse `json:"stored"`
	Recomputed aggregateResponse `json:"recomputed"`
}

func toDriftResponse(d rating.Drift) driftResponse {
	return driftResponse{
		InSync:     d.InSync,
		Stored:     toAggregateResponse(d.Stored),
		Recomputed: toAggregateResponse(d.Recomputed),
	}
}

type ratingResponse struct {
	Request   requestResponse   `json:"request"`
	Aggregate aggregateResponse `json:"aggregate"`
}

type feedItemResponse struct {
	Request   requestResponse   `json:"request"`
	Remaining remainingResponse `json:"remaining"`
}

type feedResponse struct {
	ProviderID string             `json:"provider_id"`
	Urgency    string             `json:"urgency,omitempty"`
	Items      []feedItemResponse `json:"items"`
	Stale      []string           `json:"stale,omitempty"`
	DerivedAt  time.Time          `json:"derived_at"`
}

func toFeedResponse(v feed.View) feedResponse {
	resp := feedResponse{
		ProviderID: v.ProviderID,
		Urgency:    string(v.Filter),
		Items:      make([]feedItemResponse, 0, len(v.Items)),
		Stale:      v.Stale,
		DerivedAt:  v.DerivedAt,
	}
	for _, it := range v.Items {
		resp.Items = append(resp.Items, feedItemResponse{
			Request:   toRequestResponse(it.Request, v.DerivedAt),
			Remaining: *toRemaining(it.Remaining),
		})
	}
	return resp
}
