package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/identity"
	"github.com/muthu-raja18/QuickServe-sub001/notify"
)

// Service runs the request lifecycle. Every write is a conditional store
// update re-checking the precondition it was decided on; the service itself
// never retries.
type Service struct {
	store       Store
	emitter     *notify.Emitter
	log         *zap.Logger
	now         func() time.Time
	idGenerator func() string
}

// CreateParams is the seeker-supplied part of a new request.
type CreateParams struct {
	ProviderID  string
	Category    string
	Description string
	Location    Location
	Urgency     clock.Urgency
}

func NewService(store Store, emitter *notify.Emitter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:       store,
		emitter:     emitter,
		log:         log,
		now:         time.Now,
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) clockNow() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Create opens a pending request from the acting seeker to one provider.
func (s *Service) Create(ctx context.Context, actor identity.Actor, params CreateParams) (ServiceRequest, error) {
	if !actor.IsSeeker() {
		return ServiceRequest{}, fmt.Errorf("%w: only seekers create requests", ErrForbidden)
	}
	params.ProviderID = strings.TrimSpace(params.ProviderID)
	params.Category = strings.TrimSpace(params.Category)
	switch {
	case params.ProviderID == "":
		return ServiceRequest{}, fmt.Errorf("%w: provider id required", ErrInvalid)
	case params.ProviderID == actor.ID:
		return ServiceRequest{}, fmt.Errorf("%w: cannot request yourself", ErrInvalid)
	case params.Category == "":
		return ServiceRequest{}, fmt.Errorf("%w: category required", ErrInvalid)
	case strings.TrimSpace(params.Location.District) == "":
		return ServiceRequest{}, fmt.Errorf("%w: district required", ErrInvalid)
	}

	now := s.clockNow()
	expiresAt, err := clock.ExpiresAt(now, params.Urgency)
	if err != nil {
		return ServiceRequest{}, err
	}

	req := ServiceRequest{
		ID:          s.idGenerator(),
		SeekerID:    actor.ID,
		ProviderID:  params.ProviderID,
		Category:    params.Category,
		Description: strings.TrimSpace(params.Description),
		Location: Location{
			District: strings.TrimSpace(params.Location.District),
			Block:    strings.TrimSpace(params.Location.Block),
		},
		Urgency:   params.Urgency,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return ServiceRequest{}, fmt.Errorf("request: create: %w", err)
	}

	s.notify(ctx, req, notify.KindRequestCreated)
	return req, nil
}

// Get returns a request visible to actor, expiring it first if it is overdue.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id string) (ServiceRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return ServiceRequest{}, err
	}
	if actor.ID == "" || (actor.ID != req.SeekerID && actor.ID != req.ProviderID) {
		return ServiceRequest{}, ErrForbidden
	}
	if req.Overdue(s.clockNow()) {
		req, _, err = s.expire(ctx, req)
		if err != nil {
			return ServiceRequest{}, err
		}
	}
	return req, nil
}

// ListForProvider returns the acting provider's requests after sweeping any
// overdue pending ones.
func (s *Service) ListForProvider(ctx context.Context, actor identity.Actor, statuses ...Status) ([]ServiceRequest, error) {
	if !actor.IsProvider() {
		return nil, ErrForbidden
	}
	items, err := s.store.ListByProvider(ctx, actor.ID, statuses...)
	if err != nil {
		return nil, fmt.Errorf("request: list for provider: %w", err)
	}
	return s.sweepList(ctx, items, statuses), nil
}

// ListForSeeker returns the acting seeker's requests after sweeping any
// overdue pending ones.
func (s *Service) ListForSeeker(ctx context.Context, actor identity.Actor, statuses ...Status) ([]ServiceRequest, error) {
	if !actor.IsSeeker() {
		return nil, ErrForbidden
	}
	items, err := s.store.ListBySeeker(ctx, actor.ID, statuses...)
	if err != nil {
		return nil, fmt.Errorf("request: list for seeker: %w", err)
	}
	return s.sweepList(ctx, items, statuses), nil
}

func (s *Service) sweepList(ctx context.Context, items []ServiceRequest, statuses []Status) []ServiceRequest {
	now := s.clockNow()
	out := items[:0]
	for _, item := range items {
		if item.Overdue(now) {
			swept, _, err := s.expire(ctx, item)
			if err != nil {
				s.log.Warn("request: lazy expiry failed", zap.String("request_id", item.ID), zap.Error(err))
			} else {
				item = swept
			}
		}
		if MatchStatus(item.Status, statuses) {
			out = append(out, item)
		}
	}
	return out
}

// Accept moves a pending request to accepted. The write is conditioned on the
// request being pending and not past its deadline at the write instant, so an
// accept racing the expiry boundary fails closed. Re-accepting is a no-op.
func (s *Service) Accept(ctx context.Context, actor identity.Actor, id string) (ServiceRequest, error) {
	return s.transition(ctx, actor, id, StatusAccepted, s.asProvider, notify.KindRequestAccepted)
}

// Reject declines a pending request. Repeating it is a no-op.
func (s *Service) Reject(ctx context.Context, actor identity.Actor, id string) (ServiceRequest, error) {
	return s.transition(ctx, actor, id, StatusRejected, s.asProvider, notify.KindRequestRejected)
}

// Cancel lets the owning seeker abandon a pending request.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id string) (ServiceRequest, error) {
	return s.transition(ctx, actor, id, StatusCancelled, s.asSeeker, notify.KindRequestCancelled)
}

// Start marks an accepted request as in progress.
func (s *Service) Start(ctx context.Context, actor identity.Actor, id string) (ServiceRequest, error) {
	return s.transition(ctx, actor, id, StatusInProgress, s.asProvider, notify.KindRequestStarted)
}

// MarkComplete hands an accepted or in-progress request to the seeker for
// confirmation by rating.
func (s *Service) MarkComplete(ctx context.Context, actor identity.Actor, id string) (ServiceRequest, error) {
	return s.transition(ctx, actor, id, StatusAwaitingConfirmation, s.asProvider, notify.KindRequestAwaitingConfirmation)
}

// Expire sweeps one request if it is pending and overdue. It reports whether
// this call performed the transition; every other outcome is a no-op.
func (s *Service) Expire(ctx context.Context, id string) (ServiceRequest, bool, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return ServiceRequest{}, false, err
	}
	if !req.Overdue(s.clockNow()) {
		return req, false, nil
	}
	return s.expire(ctx, req)
}

// SweepProvider expires every overdue pending request of a provider and
// returns how many it moved.
func (s *Service) SweepProvider(ctx context.Context, providerID string) (int, error) {
	pending, err := s.store.ListByProvider(ctx, providerID, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("request: sweep provider: %w", err)
	}
	now := s.clockNow()
	var (
		swept int
		errs  []error
	)
	for _, req := range pending {
		if !req.Overdue(now) {
			continue
		}
		_, changed, err := s.expire(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("request %s: %w", req.ID, err))
			continue
		}
		if changed {
			swept++
		}
	}
	return swept, errors.Join(errs...)
}

func (s *Service) expire(ctx context.Context, req ServiceRequest) (ServiceRequest, bool, error) {
	next, err := s.store.Transition(ctx, Change{
		ID:   req.ID,
		From: StatusPending,
		To:   StatusExpired,
		At:   s.clockNow(),
	})
	if errors.Is(err, ErrStale) {
		fresh, getErr := s.store.Get(ctx, req.ID)
		if getErr != nil {
			return ServiceRequest{}, false, getErr
		}
		return fresh, false, nil
	}
	if err != nil {
		return ServiceRequest{}, false, fmt.Errorf("request: expire %s: %w", req.ID, err)
	}
	s.notify(ctx, next, notify.KindRequestExpired)
	return next, true, nil
}

func (s *Service) asProvider(actor identity.Actor, req ServiceRequest) error {
	if !actor.IsProvider() || req.ProviderID != actor.ID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) asSeeker(actor identity.Actor, req ServiceRequest) error {
	if !actor.IsSeeker() || req.SeekerID != actor.ID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) transition(
	ctx context.Context,
	actor identity.Actor,
	id string,
	to Status,
	authorize func(identity.Actor, ServiceRequest) error,
	kind notify.Kind,
) (ServiceRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return ServiceRequest{}, err
	}
	if err := authorize(actor, req); err != nil {
		return ServiceRequest{}, err
	}

	now := s.clockNow()
	done, err := decide(req, to, now)
	if errors.Is(err, ErrExpired) && req.Overdue(now) {
		if _, _, sweepErr := s.expire(ctx, req); sweepErr != nil {
			s.log.Warn("request: lazy expiry failed", zap.String("request_id", req.ID), zap.Error(sweepErr))
		}
	}
	if err != nil || done {
		return req, err
	}

	change := Change{ID: req.ID, From: req.Status, To: to, At: now}
	if to == StatusAccepted {
		change.NotExpiredAt = now
	}
	next, err := s.store.Transition(ctx, change)
	if errors.Is(err, ErrStale) {
		fresh, getErr := s.store.Get(ctx, id)
		if getErr != nil {
			return ServiceRequest{}, getErr
		}
		done, err := decide(fresh, to, s.clockNow())
		if err != nil {
			return fresh, err
		}
		if done {
			return fresh, nil
		}
		return ServiceRequest{}, fmt.Errorf("request: %s %s: %w", to, id, ErrStale)
	}
	if err != nil {
		return ServiceRequest{}, fmt.Errorf("request: %s %s: %w", to, id, err)
	}

	s.log.Debug("request transitioned",
		zap.String("request_id", next.ID),
		zap.String("from", string(req.Status)),
		zap.String("to", string(next.Status)),
	)
	s.notify(ctx, next, kind)
	return next, nil
}

// decide reports whether req already sits in to (done) or why it cannot move there.
func decide(req ServiceRequest, to Status, now time.Time) (bool, error) {
	if req.Status == to {
		return true, nil
	}
	if !CanTransition(req.Status, to) {
		if CanTransition(StatusPending, to) {
			if req.Status == StatusExpired {
				return false, fmt.Errorf("%w: expired at %s", ErrExpired, req.ExpiresAt.Format(time.RFC3339))
			}
			return false, fmt.Errorf("%w: status is %s", ErrNotPending, req.Status)
		}
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, to)
	}
	if req.Overdue(now) {
		return false, fmt.Errorf("%w: expired at %s", ErrExpired, req.ExpiresAt.Format(time.RFC3339))
	}
	return false, nil
}

func (s *Service) notify(ctx context.Context, req ServiceRequest, kind notify.Kind) {
	recipient := req.SeekerID
	switch kind {
	case notify.KindRequestCreated, notify.KindRequestCancelled, notify.KindRequestCompleted:
		recipient = req.ProviderID
	}
	s.emitter.Emit(ctx, notify.Message{
		RecipientID: recipient,
		Kind:        kind,
		Payload:     Payload(req),
	})
}

// Payload is the notification body describing req.
func Payload(req ServiceRequest) map[string]any {
	payload := map[string]any{
		"request_id":  req.ID,
		"seeker_id":   req.SeekerID,
		"provider_id": req.ProviderID,
		"category":    req.Category,
		"status":      string(req.Status),
		"urgency":     string(req.Urgency),
		"expires_at":  req.ExpiresAt.UTC(),
	}
	if req.Rating != nil {
		payload["stars"] = *req.Rating
	}
	return payload
}
