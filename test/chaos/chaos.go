package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TerminateRandomBackend kills one other backend of the current database
// roughly once every five ticks, forcing pool reconnects and LISTEN restarts.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Intn(5) == 0 {
				_, _ = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
                                       WHERE datname = current_database() AND pid <> pg_backend_pid()
                                       ORDER BY random() LIMIT 1`)
			}
		}
	}
}

// PullInDeadlines moves the deadline of a few pending, not yet overdue
// requests to now, so accepts and sweeps keep racing the expiry instant. The
// outer predicate is re-evaluated on the locked row, so a request accepted or
// swept meanwhile keeps its deadline.
func PullInDeadlines(ctx context.Context, pool *pgxpool.Pool, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			_, _ = pool.Exec(ctx, `UPDATE service_requests
                                   SET expires_at = GREATEST(created_at + interval '1 millisecond', now())
                                   WHERE status = 'pending' AND expires_at > now()
                                     AND id IN (SELECT id FROM service_requests
                                                WHERE status = 'pending' AND expires_at > now()
                                                ORDER BY random() LIMIT 3)`)
		}
	}
}
