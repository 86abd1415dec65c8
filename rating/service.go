package rating

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/identity"
	"github.com/muthu-raja18/QuickServe-sub001/notify"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

const maxReviewRunes = 2000

// Service submits ratings and reconciles aggregates. Conflicts are returned,
// never retried here; wrap calls in fault.Retry to retry them.
type Service struct {
	requests RequestReader
	store    Store
	emitter  *notify.Emitter
	log      *zap.Logger
	now      func() time.Time
}

// Result is what a successful submission leaves behind.
type Result struct {
	Request   request.ServiceRequest
	Aggregate Aggregate
}

func NewService(requests RequestReader, store Store, emitter *notify.Emitter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		requests: requests,
		store:    store,
		emitter:  emitter,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit rates a request awaiting confirmation, completing it and folding the
// stars into the provider's aggregate as one atomic write.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, requestID string, stars int, review string) (Result, error) {
	if err := Validate(stars); err != nil {
		return Result{}, err
	}
	review = strings.TrimSpace(review)
	if utf8.RuneCountInString(review) > maxReviewRunes {
		return Result{}, ErrInvalidReview
	}

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return Result{}, err
	}
	if !actor.IsSeeker() || req.SeekerID != actor.ID {
		return Result{}, ErrForbidden
	}
	if err := ratable(req); err != nil {
		return Result{}, err
	}
	if req.ProviderID == "" {
		s.log.Error("rating: request without provider reached rating",
			zap.String("request_id", req.ID),
			zap.String("seeker_id", req.SeekerID),
		)
		return Result{}, fmt.Errorf("%w: request %s", ErrMissingProvider, req.ID)
	}

	current, err := s.store.Load(ctx, req.ProviderID)
	if err != nil {
		return Result{}, fmt.Errorf("rating: load aggregate: %w", err)
	}
	next, err := Apply(current, stars)
	if err != nil {
		return Result{}, err
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	next.ProviderID = req.ProviderID
	next.Version = current.Version + 1
	next.UpdatedAt = now

	closed, err := s.store.CommitRating(ctx, Commit{
		RequestID:  req.ID,
		ProviderID: req.ProviderID,
		Stars:      stars,
		Review:     review,
		At:         now,
		Expected:   current.Version,
		Next:       next,
	})
	if errors.Is(err, ErrNotAwaiting) {
		fresh, getErr := s.requests.Get(ctx, requestID)
		if getErr != nil {
			return Result{}, getErr
		}
		if err := ratable(fresh); err != nil {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("rating: commit %s: %w", requestID, err)
	}
	if err != nil {
		return Result{}, fmt.Errorf("rating: commit %s: %w", requestID, err)
	}

	s.emitter.Emit(ctx, notify.Message{
		RecipientID: closed.ProviderID,
		Kind:        notify.KindRequestCompleted,
		Payload:     request.Payload(closed),
	})
	return Result{Request: closed, Aggregate: next}, nil
}

func ratable(req request.ServiceRequest) error {
	if req.Rated() {
		return fmt.Errorf("%w: request %s", ErrAlreadyRated, req.ID)
	}
	if req.Status != request.StatusAwaitingConfirmation {
		return fmt.Errorf("%w: status is %s", ErrNotAwaiting, req.Status)
	}
	return nil
}

// Get returns the stored aggregate.
func (s *Service) Get(ctx context.Context, providerID string) (Aggregate, error) {
	if strings.TrimSpace(providerID) == "" {
		return Aggregate{}, ErrInvalidProvider
	}
	agg, err := s.store.Load(ctx, providerID)
	if err != nil {
		return Aggregate{}, fmt.Errorf("rating: load aggregate: %w", err)
	}
	return agg, nil
}

// Audit recomputes the aggregate from source and compares it to the stored
// one without writing.
func (s *Service) Audit(ctx context.Context, providerID string) (Drift, error) {
	if strings.TrimSpace(providerID) == "" {
		return Drift{}, ErrInvalidProvider
	}
	stored, err := s.store.Load(ctx, providerID)
	if err != nil {
		return Drift{}, fmt.Errorf("rating: load aggregate: %w", err)
	}
	recomputed, err := s.recompute(ctx, providerID)
	if err != nil {
		return Drift{}, err
	}
	stored.ProviderID = providerID
	return Drift{
		Stored:     stored,
		Recomputed: recomputed,
		InSync:     SameContent(stored, recomputed),
	}, nil
}

// Reconcile rebuilds the aggregate from completed requests and persists it
// when it drifted. Running it on an in-sync aggregate writes nothing.
func (s *Service) Reconcile(ctx context.Context, providerID string) (Drift, error) {
	drift, err := s.Audit(ctx, providerID)
	if err != nil {
		return Drift{}, err
	}
	if drift.InSync {
		return drift, nil
	}

	next := drift.Recomputed
	next.Version = drift.Stored.Version + 1
	next.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	if err := s.store.SaveReconciled(ctx, next, drift.Stored.Version); err != nil {
		return Drift{}, fmt.Errorf("rating: save reconciled %s: %w", providerID, err)
	}

	s.log.Warn("rating: aggregate drift repaired",
		zap.String("provider_id", providerID),
		zap.Int("stored_reviews", drift.Stored.TotalReviews),
		zap.Int("recomputed_reviews", next.TotalReviews),
		zap.Float64("stored_average", drift.Stored.Average),
		zap.Float64("recomputed_average", next.Average),
	)
	drift.Recomputed = next
	return drift, nil
}

// Providers lists every provider the store knows an aggregate or completed job for.
func (s *Service) Providers(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("rating: list providers: %w", err)
	}
	return ids, nil
}

func (s *Service) recompute(ctx context.Context, providerID string) (Aggregate, error) {
	completed, err := s.store.ListCompleted(ctx, providerID)
	if err != nil {
		return Aggregate{}, fmt.Errorf("rating: list completed: %w", err)
	}
	for _, r := range completed {
		if r.Rating != nil && Validate(*r.Rating) != nil {
			s.log.Error("rating: corrupt stored rating",
				zap.String("request_id", r.ID),
				zap.String("provider_id", providerID),
				zap.Int("stars", *r.Rating),
			)
			return Aggregate{}, fmt.Errorf("%w: request %s has %d stars", ErrCorruptSource, r.ID, *r.Rating)
		}
	}
	return Reconcile(providerID, completed), nil
}
