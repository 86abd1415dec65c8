package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel the service_requests trigger publishes
// provider ids on.
const ChangeChannel = "service_request_changed"

// PGListener holds one dedicated LISTEN connection and fans notifications out
// to per-provider subscribers.
type PGListener struct {
	pool *pgxpool.Pool
	hub  *Hub
	log  *zap.Logger
}

func NewPGListener(pool *pgxpool.Pool, log *zap.Logger) *PGListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &PGListener{pool: pool, hub: NewHub(), log: log}
}

func (l *PGListener) Subscribe(providerID string) (<-chan struct{}, func()) {
	return l.hub.Subscribe(providerID)
}

// Run listens until ctx is done, reconnecting with backoff. After every
// reconnect all subscribers are signalled since notifications may have been
// missed in between.
func (l *PGListener) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := l.listen(ctx, policy.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		l.log.Warn("feed: listener disconnected", zap.Error(err), zap.Duration("retry_in", wait))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *PGListener) listen(ctx context.Context, connected func()) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("feed: acquire listen conn: %w", err)
	}
	conn := pooled.Hijack()
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return fmt.Errorf("feed: listen: %w", err)
	}
	connected()
	l.hub.PublishAll()
	l.log.Info("feed: listening for request changes", zap.String("channel", ChangeChannel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("feed: wait for notification: %w", err)
		}
		if n.Payload != "" {
			l.hub.Publish(n.Payload)
		}
	}
}
