package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabase is returned when neither Docker, a DSN nor a local server is available.
var ErrNoDatabase = fmt.Errorf("no postgres available: set STRESS_TEST_PG_DSN, run docker, or start a local server")

// Harness owns the lifecycle of the database a stress run uses: a shared DSN,
// a testcontainers Postgres, or a recreated local database, in that order.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	dsn       string
	teardown  func(context.Context) error
}

func NewHarness(ctx context.Context, overrideDSN string, maxConns int32) (*Harness, error) {
	if overrideDSN == "" {
		overrideDSN = os.Getenv("STRESS_TEST_PG_DSN")
	}
	shared := overrideDSN != ""

	h := &Harness{container: &PGContainer{}}
	switch {
	case shared:
		h.dsn = overrideDSN
	case dockerAvailable(ctx):
		c, dsn, err := StartPostgres16(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
		h.container, h.dsn = c, dsn
	default:
		dsn, err := InitLocalDatabase(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDatabase, err)
		}
		h.dsn = dsn
	}

	pool, teardown, err := ApplyMigrations(ctx, h.dsn, maxConns, shared)
	if err != nil {
		h.Close(ctx)
		return nil, err
	}
	h.pool, h.teardown = pool, teardown
	return h, nil
}

// Pool exposes the migrated pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections (e.g. chaos).
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down the pool, the isolated schema and the container.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.teardown != nil {
		_ = h.teardown(ctx)
	}
	_ = h.container.Terminate(ctx)
}

// Reset truncates every table for a clean slate between epochs. TRUNCATE
// bypasses the row-level no-delete trigger on service_requests.
func (h *Harness) Reset(ctx context.Context) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE service_requests, provider_ratings, outbox"); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reset commit: %w", err)
	}
	return nil
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
