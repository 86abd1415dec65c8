package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// Subscriber delivers change signals for one provider.
type Subscriber interface {
	Subscribe(providerID string) (<-chan struct{}, func())
}

// Sweeper expires one overdue request; request.Service satisfies it.
type Sweeper interface {
	Expire(ctx context.Context, id string) (request.ServiceRequest, bool, error)
}

const (
	defaultRefresh    = 30 * time.Second
	defaultSweepLimit = 4
)

// Watcher keeps one provider's feed live. It derives on start, on every change
// signal and on each refresh tick, so countdowns advance without writes.
type Watcher struct {
	providerID string
	filter     Filter
	source     Source
	changes    Subscriber
	sweeper    Sweeper
	log        *zap.Logger
	now        func() time.Time
	refresh    time.Duration
	sweepLimit int
}

func NewWatcher(providerID string, source Source, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		providerID: providerID,
		source:     source,
		log:        log.With(zap.String("provider_id", providerID)),
		now:        time.Now,
		refresh:    defaultRefresh,
		sweepLimit: defaultSweepLimit,
	}
}

func (w *Watcher) WithFilter(f Filter) *Watcher {
	w.filter = f
	return w
}

// WithSubscriber enables push updates. Without one the watcher relies on its tick.
func (w *Watcher) WithSubscriber(s Subscriber) *Watcher {
	w.changes = s
	return w
}

func (w *Watcher) WithSweeper(s Sweeper) *Watcher {
	w.sweeper = s
	return w
}

func (w *Watcher) WithRefresh(d time.Duration) *Watcher {
	if d > 0 {
		w.refresh = d
	}
	return w
}

func (w *Watcher) WithSweepLimit(n int) *Watcher {
	if n > 0 {
		w.sweepLimit = n
	}
	return w
}

func (w *Watcher) WithClock(now func() time.Time) *Watcher {
	w.now = now
	return w
}

// Run publishes a fresh View to out after every derivation until ctx is done.
func (w *Watcher) Run(ctx context.Context, out chan<- View) error {
	var changes <-chan struct{}
	if w.changes != nil {
		ch, cancel := w.changes.Subscribe(w.providerID)
		defer cancel()
		changes = ch
	}

	ticker := time.NewTicker(w.refresh)
	defer ticker.Stop()

	for {
		if view, ok := w.derive(ctx); ok {
			select {
			case out <- view:
			case <-ctx.Done():
				return nil
			}
			w.sweep(ctx, view.Stale)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-changes:
		case <-ticker.C:
		}
	}
}

func (w *Watcher) derive(ctx context.Context) (View, bool) {
	view, err := Snapshot(ctx, w.source, w.providerID, w.filter, w.now())
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("feed: derive failed", zap.Error(err))
		}
		return View{}, false
	}
	return view, true
}

// sweep expires stale ids with bounded concurrency. Failures are logged; the
// next derivation flags the same ids again.
func (w *Watcher) sweep(ctx context.Context, stale []string) {
	if w.sweeper == nil || len(stale) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.sweepLimit)
	for _, id := range stale {
		id := id
		g.Go(func() error {
			if _, _, err := w.sweeper.Expire(gctx, id); err != nil && gctx.Err() == nil {
				w.log.Warn("feed: sweep failed", zap.String("request_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
