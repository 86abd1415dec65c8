package request

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/db"
)

// Querier is the subset of pgxpool.Pool and pgx.Tx the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps requests in the service_requests table.
type PGStore struct {
	db Querier
}

func NewPGStore(db Querier) *PGStore {
	return &PGStore{db: db}
}

// RowID parses a request id into the column's uuid type so lookups hit the
// primary key. A malformed id cannot match any row.
func RowID(id string) (uuid.UUID, bool) {
	u, err := uuid.Parse(id)
	return u, err == nil
}

// Columns lists service_requests columns in the order ScanRow expects.
const Columns = `id::text, seeker_id, provider_id, category, description, district, block, urgency, status,
rating, review, created_at, expires_at, accepted_at, rejected_at, expired_at, cancelled_at,
started_at, marked_complete_at, confirmed_at, updated_at`

// ScanRow reads one row selected with Columns.
func ScanRow(row pgx.Row) (ServiceRequest, error) {
	var (
		r          ServiceRequest
		providerID *string
		urgency    string
		status     string
		rating     *int16
		review     *string
	)
	err := row.Scan(
		&r.ID, &r.SeekerID, &providerID, &r.Category, &r.Description, &r.Location.District, &r.Location.Block,
		&urgency, &status, &rating, &review, &r.CreatedAt, &r.ExpiresAt,
		&r.AcceptedAt, &r.RejectedAt, &r.ExpiredAt, &r.CancelledAt,
		&r.StartedAt, &r.MarkedCompleteAt, &r.ConfirmedAt, &r.UpdatedAt,
	)
	if err != nil {
		return ServiceRequest{}, err
	}
	if providerID != nil {
		r.ProviderID = *providerID
	}
	r.Urgency = clock.Urgency(urgency)
	r.Status = Status(status)
	if rating != nil {
		stars := int(*rating)
		r.Rating = &stars
	}
	if review != nil {
		r.Review = *review
	}
	return r, nil
}

func (s *PGStore) Create(ctx context.Context, r ServiceRequest) error {
	const insertSQL = `
INSERT INTO service_requests (id, seeker_id, provider_id, category, description, district, block,
                              urgency, status, created_at, expires_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	_, err := s.db.Exec(ctx, insertSQL,
		r.ID, r.SeekerID, r.ProviderID, r.Category, r.Description, r.Location.District, r.Location.Block,
		string(r.Urgency), string(r.Status), r.CreatedAt, r.ExpiresAt, r.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return db.Classify("request: insert", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (ServiceRequest, error) {
	rowID, ok := RowID(id)
	if !ok {
		return ServiceRequest{}, ErrNotFound
	}
	r, err := ScanRow(s.db.QueryRow(ctx, `SELECT `+Columns+` FROM service_requests WHERE id = $1`, rowID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceRequest{}, ErrNotFound
		}
		return ServiceRequest{}, db.Classify("request: get", err)
	}
	return r, nil
}

func (s *PGStore) ListByProvider(ctx context.Context, providerID string, statuses ...Status) ([]ServiceRequest, error) {
	return s.list(ctx, "provider_id", providerID, statuses)
}

func (s *PGStore) ListBySeeker(ctx context.Context, seekerID string, statuses ...Status) ([]ServiceRequest, error) {
	return s.list(ctx, "seeker_id", seekerID, statuses)
}

func (s *PGStore) list(ctx context.Context, column, value string, statuses []Status) ([]ServiceRequest, error) {
	var (
		sb   strings.Builder
		args = []any{value}
	)
	sb.WriteString(`SELECT ` + Columns + ` FROM service_requests WHERE ` + column + ` = $1`)
	if len(statuses) > 0 {
		raw := make([]string, len(statuses))
		for i, st := range statuses {
			raw[i] = string(st)
		}
		args = append(args, raw)
		sb.WriteString(` AND status = ANY($2)`)
	}
	sb.WriteString(` ORDER BY expires_at, id`)

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, db.Classify("request: list", err)
	}
	defer rows.Close()

	var out []ServiceRequest
	for rows.Next() {
		r, err := ScanRow(rows)
		if err != nil {
			return nil, db.Classify("request: scan", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("request: list", err)
	}
	return out, nil
}

// Transition runs the change as a single conditional UPDATE.
func (s *PGStore) Transition(ctx context.Context, c Change) (ServiceRequest, error) {
	if err := c.Validate(); err != nil {
		return ServiceRequest{}, err
	}
	column := TimestampColumn(c.To)
	rowID, ok := RowID(c.ID)
	if !ok {
		return ServiceRequest{}, ErrStale
	}

	var notExpired *time.Time
	if !c.NotExpiredAt.IsZero() {
		notExpired = &c.NotExpiredAt
	}

	updateSQL := `
UPDATE service_requests
SET status = $3, ` + column + ` = $4, updated_at = $4
WHERE id = $1
  AND status = $2
  AND ($5::timestamptz IS NULL OR expires_at >= $5)
RETURNING ` + Columns

	r, err := ScanRow(s.db.QueryRow(ctx, updateSQL, rowID, string(c.From), string(c.To), c.At, notExpired))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceRequest{}, ErrStale
		}
		return ServiceRequest{}, db.Classify("request: transition", err)
	}
	return r, nil
}
