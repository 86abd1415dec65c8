package rating

import (
	"context"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

var (
	// ErrVersionConflict is returned when the aggregate moved between read and write.
	ErrVersionConflict = fault.New(fault.KindConflict, "rating: aggregate changed concurrently")
	// ErrNotAwaiting is returned when the request is not awaiting confirmation.
	ErrNotAwaiting = fault.New(fault.KindPrecondition, "rating: request not awaiting confirmation")
	// ErrAlreadyRated is returned on a second rating of the same request.
	ErrAlreadyRated = fault.New(fault.KindPrecondition, "rating: request already rated")
	// ErrMissingProvider is a data-integrity fault: a ratable request with no provider.
	ErrMissingProvider = fault.New(fault.KindIntegrity, "rating: request has no provider")
	// ErrCorruptSource is a data-integrity fault found while reconciling.
	ErrCorruptSource = fault.New(fault.KindIntegrity, "rating: stored rating out of range")
	// ErrForbidden is returned when someone other than the owning seeker rates.
	ErrForbidden = fault.New(fault.KindForbidden, "rating: only the requesting seeker may rate")
	// ErrInvalidProvider is returned for an empty provider id.
	ErrInvalidProvider = fault.New(fault.KindInvalid, "rating: provider id required")
	// ErrInvalidReview is returned for oversized review text.
	ErrInvalidReview = fault.New(fault.KindInvalid, "rating: review too long")
)

// Commit is the atomic unit of a rating submission: close the request and
// move the aggregate from version Expected to Next.
type Commit struct {
	RequestID  string
	ProviderID string
	Stars      int
	Review     string
	At         time.Time
	Expected   int64
	Next       Aggregate
}

// Store persists aggregates next to the requests they are derived from.
type Store interface {
	// Load returns the aggregate, or the zero aggregate at version 0 if none exists.
	Load(ctx context.Context, providerID string) (Aggregate, error)
	// CommitRating closes the request and writes the aggregate in one atomic
	// step. It fails with ErrNotAwaiting if the request is no longer ratable
	// and ErrVersionConflict if the aggregate is not at c.Expected; neither
	// write happens in either case.
	CommitRating(ctx context.Context, c Commit) (request.ServiceRequest, error)
	// SaveReconciled replaces the aggregate if it is still at expected.
	SaveReconciled(ctx context.Context, next Aggregate, expected int64) error
	// ListCompleted returns every completed request of the provider.
	ListCompleted(ctx context.Context, providerID string) ([]request.ServiceRequest, error)
	// ListProviders returns every provider with completed work or a stored aggregate.
	ListProviders(ctx context.Context) ([]string, error)
}

// RequestReader is the point-read half of request.Store.
type RequestReader interface {
	Get(ctx context.Context, id string) (request.ServiceRequest, error)
}
