package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusDead      = "dead"
)

// Execer is the subset of pgxpool.Pool the outbox writer needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TxBeginner abstracts pgxpool.Pool for the relay.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Outbox is a Sink that persists messages to the outbox table for the Relay.
type Outbox struct {
	db Execer
}

func NewOutbox(db Execer) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("notify: marshal outbox payload: %w", err)
	}

	const insertSQL = `
INSERT INTO outbox (id, recipient_id, kind, payload, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING;
`
	if _, err := o.db.Exec(ctx, insertSQL, msg.ID, msg.RecipientID, string(msg.Kind), payload, msg.CreatedAt); err != nil {
		return fmt.Errorf("notify: insert outbox message: %w", err)
	}
	return nil
}

// Relay drains pending outbox rows into a downstream Sink. Several relays may
// run against one table; rows are claimed with SKIP LOCKED.
type Relay struct {
	pool        TxBeginner
	sink        Sink
	log         *zap.Logger
	batchSize   int
	maxAttempts int
	interval    time.Duration
	retryBase   time.Duration
	retryMax    time.Duration
}

func NewRelay(pool TxBeginner, sink Sink, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		pool:        pool,
		sink:        sink,
		log:         log,
		batchSize:   10,
		maxAttempts: 5,
		interval:    500 * time.Millisecond,
		retryBase:   2 * time.Second,
		retryMax:    5 * time.Minute,
	}
}

// WithRetryDelay sets the wait before the first redelivery. It doubles with
// every further failed attempt, up to ceiling.
func (r *Relay) WithRetryDelay(base, ceiling time.Duration) *Relay {
	if base > 0 {
		r.retryBase = base
	}
	if ceiling >= r.retryBase {
		r.retryMax = ceiling
	}
	return r
}

// retryAfter is the wait after the given number of failed attempts.
func (r *Relay) retryAfter(failed int) time.Duration {
	d := r.retryBase
	for i := 1; i < failed; i++ {
		d *= 2
		if d >= r.retryMax {
			return r.retryMax
		}
	}
	if d > r.retryMax {
		return r.retryMax
	}
	return d
}

func (r *Relay) WithInterval(d time.Duration) *Relay {
	if d > 0 {
		r.interval = d
	}
	return r
}

func (r *Relay) WithMaxAttempts(n int) *Relay {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.DrainOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.log.Warn("notify: relay drain failed", zap.Error(err))
		}
		if err == nil && n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type outboxRow struct {
	msg      Message
	attempts int
}

// DrainOnce claims one batch, delivers it and records the outcome. It returns
// how many rows were claimed.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: begin relay tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const claimSQL = `
SELECT id::text, recipient_id, kind, payload, attempts, created_at
FROM outbox
WHERE status = 'pending'
  AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
ORDER BY created_at
FOR UPDATE SKIP LOCKED
LIMIT $1;
`
	rows, err := tx.Query(ctx, claimSQL, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("notify: claim outbox rows: %w", err)
	}
	batch := make([]outboxRow, 0, r.batchSize)
	for rows.Next() {
		var (
			row     outboxRow
			kind    string
			payload []byte
		)
		if err := rows.Scan(&row.msg.ID, &row.msg.RecipientID, &kind, &payload, &row.attempts, &row.msg.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("notify: scan outbox row: %w", err)
		}
		row.msg.Kind = Kind(kind)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &row.msg.Payload); err != nil {
				r.log.Warn("notify: undecodable outbox payload", zap.String("message_id", row.msg.ID), zap.Error(err))
			}
		}
		batch = append(batch, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("notify: iterate outbox rows: %w", err)
	}

	for _, row := range batch {
		sendErr := r.sink.Send(ctx, row.msg)
		if sendErr == nil {
			if _, err := tx.Exec(ctx, `UPDATE outbox SET status = 'processed', attempts = attempts + 1, last_attempt = NOW() WHERE id = $1`, row.msg.ID); err != nil {
				return 0, fmt.Errorf("notify: mark processed: %w", err)
			}
			continue
		}

		status := OutboxStatusPending
		if row.attempts+1 >= r.maxAttempts {
			status = OutboxStatusDead
		}
		wait := r.retryAfter(row.attempts + 1)
		r.log.Warn("notify: relay delivery failed",
			zap.Error(sendErr),
			zap.String("message_id", row.msg.ID),
			zap.Int("attempt", row.attempts+1),
			zap.String("status", status),
			zap.Duration("retry_after", wait),
		)
		const failSQL = `
UPDATE outbox
SET status = $2, attempts = attempts + 1, last_attempt = NOW(),
    next_attempt_at = NOW() + $3::bigint * interval '1 microsecond'
WHERE id = $1`
		if _, err := tx.Exec(ctx, failSQL, row.msg.ID, status, wait.Microseconds()); err != nil {
			return 0, fmt.Errorf("notify: record failed attempt: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("notify: commit relay tx: %w", err)
	}
	return len(batch), nil
}
