package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/identity"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// Env is what every actor drives: the real services over the real store.
type Env struct {
	Requests  *request.Service
	Ratings   *rating.Service
	Providers []string
	Stats     *Stats
}

// Stats counts outcomes so a run can show it actually exercised the races.
type Stats struct {
	Created, Accepted, Completed, Rated, Expired atomic.Int64
	Rejected                                    atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("created=%d accepted=%d completed=%d rated=%d expired=%d rejected_ops=%d",
		s.Created.Load(), s.Accepted.Load(), s.Completed.Load(), s.Rated.Load(), s.Expired.Load(), s.Rejected.Load())
}

// tolerate swallows the outcomes expected under contention and chaos. Only
// integrity faults and unclassified errors end a run.
func (e *Env) tolerate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	switch fault.KindOf(err) {
	case fault.KindPrecondition, fault.KindConflict, fault.KindUnavailable, fault.KindNotFound, fault.KindForbidden:
		e.Stats.Rejected.Add(1)
		return nil
	case fault.KindIntegrity:
		return err
	}
	// Killed backends can surface as bare connection errors on some paths.
	e.Stats.Rejected.Add(1)
	return nil
}

func pause(base, jitter int) {
	time.Sleep(time.Duration(base+rand.Intn(jitter)) * time.Millisecond)
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// Seeker opens requests to random providers and occasionally cancels one.
func Seeker(ctx context.Context, env *Env, seekerID string, stop <-chan struct{}) error {
	actor := identity.Actor{ID: seekerID, Role: identity.RoleSeeker}
	urgencies := clock.Urgencies()
	for !stopped(ctx, stop) {
		created, err := env.Requests.Create(ctx, actor, request.CreateParams{
			ProviderID: env.Providers[rand.Intn(len(env.Providers))],
			Category:   "plumbing",
			Location:   request.Location{District: "Chennai"},
			Urgency:    urgencies[rand.Intn(len(urgencies))],
		})
		if err := env.tolerate(err); err != nil {
			return fmt.Errorf("seeker create: %w", err)
		}
		if err == nil {
			env.Stats.Created.Add(1)
			if rand.Intn(10) == 0 {
				_, err := env.Requests.Cancel(ctx, actor, created.ID)
				if err := env.tolerate(err); err != nil {
					return fmt.Errorf("seeker cancel: %w", err)
				}
			}
		}
		pause(10, 30)
	}
	return nil
}

// Provider races other providers' sweeps and the deadline: it accepts or
// rejects pending work and pushes accepted work to awaiting confirmation.
func Provider(ctx context.Context, env *Env, providerID string, stop <-chan struct{}) error {
	actor := identity.Actor{ID: providerID, Role: identity.RoleProvider}
	for !stopped(ctx, stop) {
		items, err := env.Requests.ListForProvider(ctx, actor, request.StatusPending, request.StatusAccepted, request.StatusInProgress)
		if err := env.tolerate(err); err != nil {
			return fmt.Errorf("provider list: %w", err)
		}
		for _, it := range items {
			var err error
			switch it.Status {
			case request.StatusPending:
				if rand.Intn(6) == 0 {
					_, err = env.Requests.Reject(ctx, actor, it.ID)
				} else if _, err = env.Requests.Accept(ctx, actor, it.ID); err == nil {
					env.Stats.Accepted.Add(1)
				}
			case request.StatusAccepted:
				if rand.Intn(2) == 0 {
					_, err = env.Requests.Start(ctx, actor, it.ID)
					break
				}
				fallthrough
			case request.StatusInProgress:
				if _, err = env.Requests.MarkComplete(ctx, actor, it.ID); err == nil {
					env.Stats.Completed.Add(1)
				}
			}
			if err := env.tolerate(err); err != nil {
				return fmt.Errorf("provider %s %s: %w", it.Status, it.ID, err)
			}
		}
		pause(20, 40)
	}
	return nil
}

// Rater confirms the seeker's finished jobs. Many raters share one provider
// aggregate, so version conflicts are retried the way the HTTP route does.
func Rater(ctx context.Context, env *Env, seekerID string, stop <-chan struct{}) error {
	actor := identity.Actor{ID: seekerID, Role: identity.RoleSeeker}
	for !stopped(ctx, stop) {
		items, err := env.Requests.ListForSeeker(ctx, actor, request.StatusAwaitingConfirmation)
		if err := env.tolerate(err); err != nil {
			return fmt.Errorf("rater list: %w", err)
		}
		for _, it := range items {
			stars := rating.MinStars + rand.Intn(rating.MaxStars)
			err := fault.Retry(ctx, 20, func(ctx context.Context) error {
				_, err := env.Ratings.Submit(ctx, actor, it.ID, stars, "")
				return err
			})
			if err == nil {
				env.Stats.Rated.Add(1)
			}
			if err := env.tolerate(err); err != nil {
				return fmt.Errorf("rater submit %s: %w", it.ID, err)
			}
		}
		pause(20, 40)
	}
	return nil
}

// Sweeper expires overdue pending requests across all providers.
func Sweeper(ctx context.Context, env *Env, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		for _, p := range env.Providers {
			n, err := env.Requests.SweepProvider(ctx, p)
			env.Stats.Expired.Add(int64(n))
			if err := env.tolerate(err); err != nil {
				return fmt.Errorf("sweep %s: %w", p, err)
			}
		}
		pause(50, 50)
	}
	return nil
}

// Reconciler audits aggregates while ratings land. A committed rating always
// moves request and aggregate together, so audits must never see drift.
func Reconciler(ctx context.Context, env *Env, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		p := env.Providers[rand.Intn(len(env.Providers))]
		drift, err := env.Ratings.Audit(ctx, p)
		if err := env.tolerate(err); err != nil {
			return fmt.Errorf("audit %s: %w", p, err)
		}
		if err == nil && !drift.InSync {
			// The two reads are not one snapshot; only a persistent drift is a bug.
			pause(100, 1)
			again, err := env.Ratings.Audit(ctx, p)
			if err == nil && !again.InSync && rating.SameContent(again.Stored, drift.Stored) {
				return fmt.Errorf("aggregate drift for %s: stored %+v recomputed %+v", p, again.Stored, again.Recomputed)
			}
		}
		pause(100, 100)
	}
	return nil
}
