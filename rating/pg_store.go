package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/muthu-raja18/QuickServe-sub001/db"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// DB abstracts pgxpool.Pool for testability.
type DB interface {
	request.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore keeps aggregates in provider_ratings and reads their source from
// service_requests.
type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const aggregateColumns = `stars_1, stars_2, stars_3, stars_4, stars_5, total_reviews, average, completed_jobs, version, updated_at`

func (s *PGStore) Load(ctx context.Context, providerID string) (Aggregate, error) {
	return loadAggregate(ctx, s.db, providerID)
}

func loadAggregate(ctx context.Context, q request.Querier, providerID string) (Aggregate, error) {
	agg := Aggregate{ProviderID: providerID}
	b := &agg.Breakdown
	err := q.QueryRow(ctx, `SELECT `+aggregateColumns+` FROM provider_ratings WHERE provider_id = $1`, providerID).
		Scan(&b[0], &b[1], &b[2], &b[3], &b[4], &agg.TotalReviews, &agg.Average, &agg.CompletedJobs, &agg.Version, &agg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Aggregate{ProviderID: providerID}, nil
		}
		return Aggregate{}, db.Classify("rating: load", err)
	}
	return agg, nil
}

// CommitRating closes the request and moves the aggregate inside one
// transaction. Both writes are conditional; a miss on either rolls back both.
func (s *PGStore) CommitRating(ctx context.Context, c Commit) (request.ServiceRequest, error) {
	rowID, ok := request.RowID(c.RequestID)
	if !ok {
		return request.ServiceRequest{}, ErrNotAwaiting
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return request.ServiceRequest{}, db.Classify("rating: begin tx", err)
	}
	defer tx.Rollback(ctx)

	closeSQL := `
UPDATE service_requests
SET status = 'completed', rating = $2, review = NULLIF($3, ''), confirmed_at = $4, updated_at = $4
WHERE id = $1
  AND provider_id = $5
  AND status = 'awaiting_confirmation'
  AND rating IS NULL
RETURNING ` + request.Columns

	closed, err := request.ScanRow(tx.QueryRow(ctx, closeSQL, rowID, c.Stars, c.Review, c.At, c.ProviderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return request.ServiceRequest{}, ErrNotAwaiting
		}
		return request.ServiceRequest{}, db.Classify("rating: close request", err)
	}

	if err := writeAggregate(ctx, tx, c.Next, c.Expected); err != nil {
		return request.ServiceRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return request.ServiceRequest{}, db.Classify("rating: commit tx", err)
	}
	return closed, nil
}

func (s *PGStore) SaveReconciled(ctx context.Context, next Aggregate, expected int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return db.Classify("rating: begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := writeAggregate(ctx, tx, next, expected); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return db.Classify("rating: commit tx", err)
	}
	return nil
}

// writeAggregate is a compare-and-swap on version. Version 0 means no row
// yet, so the first write is an insert that loses to any concurrent insert.
func writeAggregate(ctx context.Context, tx pgx.Tx, next Aggregate, expected int64) error {
	b := next.Breakdown
	updatedAt := next.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	var (
		tag pgconn.CommandTag
		err error
	)
	if expected == 0 {
		tag, err = tx.Exec(ctx, `
INSERT INTO provider_ratings (provider_id, `+aggregateColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (provider_id) DO NOTHING;
`, next.ProviderID, b[0], b[1], b[2], b[3], b[4], next.TotalReviews, next.Average, next.CompletedJobs, next.Version, updatedAt)
	} else {
		tag, err = tx.Exec(ctx, `
UPDATE provider_ratings
SET stars_1 = $2, stars_2 = $3, stars_3 = $4, stars_4 = $5, stars_5 = $6,
    total_reviews = $7, average = $8, completed_jobs = $9, version = $10, updated_at = $11
WHERE provider_id = $1 AND version = $12;
`, next.ProviderID, b[0], b[1], b[2], b[3], b[4], next.TotalReviews, next.Average, next.CompletedJobs, next.Version, updatedAt, expected)
	}
	if err != nil {
		return db.Classify("rating: write aggregate", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: provider %s expected version %d", ErrVersionConflict, next.ProviderID, expected)
	}
	return nil
}

func (s *PGStore) ListCompleted(ctx context.Context, providerID string) ([]request.ServiceRequest, error) {
	return request.NewPGStore(s.db).ListByProvider(ctx, providerID, request.StatusCompleted)
}

func (s *PGStore) ListProviders(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
SELECT provider_id FROM service_requests WHERE status = 'completed' AND provider_id IS NOT NULL
UNION
SELECT provider_id FROM provider_ratings
ORDER BY 1;
`)
	if err != nil {
		return nil, db.Classify("rating: list providers", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, db.Classify("rating: scan provider", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("rating: list providers", err)
	}
	return ids, nil
}
