package notify

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/muthu-raja18/QuickServe-sub001/db"
)

// TestRelay_FailingSinkWaitsBetweenAttempts connects via DATABASE_URL. A full
// backlog against a broken sink must not burn through every attempt at once.
func TestRelay_FailingSinkWaitsBetweenAttempts(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	recipient := "relay-" + uuid.NewString()
	outbox := NewOutbox(pool)
	var ids []string
	for i := 0; i < 12; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		if err := outbox.Send(ctx, Message{ID: id, RecipientID: recipient, Kind: KindRequestCreated, CreatedAt: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	defer pool.Exec(context.Background(), `DELETE FROM outbox WHERE recipient_id = $1`, recipient)

	mine := SinkFunc(func(_ context.Context, msg Message) error {
		if msg.RecipientID == recipient {
			return errors.New("sink down")
		}
		return nil
	})
	relay := NewRelay(pool, mine, nil).WithMaxAttempts(3).WithRetryDelay(time.Minute, time.Hour)
	for i := 0; i < 10; i++ {
		if _, err := relay.DrainOnce(ctx); err != nil {
			t.Fatalf("drain: %v", err)
		}
	}

	rows, err := pool.Query(ctx, `SELECT attempts, status, next_attempt_at > NOW() FROM outbox WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	seen := 0
	for rows.Next() {
		var (
			attempts int
			status   string
			deferred bool
		)
		if err := rows.Scan(&attempts, &status, &deferred); err != nil {
			t.Fatalf("scan: %v", err)
		}
		seen++
		if attempts != 1 || status != OutboxStatusPending || !deferred {
			t.Fatalf("expected one deferred attempt, got attempts=%d status=%s deferred=%v", attempts, status, deferred)
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if seen != len(ids) {
		t.Fatalf("expected %d rows, got %d", len(ids), seen)
	}
}
