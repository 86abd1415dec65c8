package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// Runs against DynamoDB Local when DYNAMODB_ENDPOINT is set.
func integrationStore(t *testing.T) *Store {
	t.Helper()
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("DYNAMODB_ENDPOINT not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := NewClient(ctx, ClientOptions{Endpoint: endpoint})
	if err != nil {
		t.Fatal(err)
	}
	suffix := uuid.NewString()[:8]
	reqs, aggs := "requests_"+suffix, "ratings_"+suffix
	if err := EnsureTables(ctx, client, reqs, aggs); err != nil {
		t.Fatal(err)
	}
	return NewStore(client, reqs, aggs, nil)
}

func TestIntegration_RatingLifecycle(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	r := sample()
	r.Status = request.StatusPending
	r.Rating = nil
	r.ConfirmedAt = nil
	if err := s.Create(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, r); !errors.Is(err, request.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	late := r.ExpiresAt.Add(time.Minute)
	if _, err := s.Transition(ctx, request.Change{
		ID: r.ID, From: request.StatusPending, To: request.StatusAccepted, At: late, NotExpiredAt: late,
	}); !errors.Is(err, request.ErrStale) {
		t.Fatalf("expected stale after deadline, got %v", err)
	}
	for i, step := range [][2]request.Status{
		{request.StatusPending, request.StatusAccepted},
		{request.StatusAccepted, request.StatusAwaitingConfirmation},
	} {
		at := t0.Add(time.Duration(i+1) * time.Minute)
		if _, err := s.Transition(ctx, request.Change{ID: r.ID, From: step[0], To: step[1], At: at}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	next, _ := rating.Apply(rating.Aggregate{ProviderID: r.ProviderID}, 5)
	next.Version = 1
	commit := rating.Commit{RequestID: r.ID, ProviderID: r.ProviderID, Stars: 5, At: t0.Add(time.Hour), Next: next}
	closed, err := s.CommitRating(ctx, commit)
	if err != nil {
		t.Fatal(err)
	}
	if closed.Status != request.StatusCompleted || *closed.Rating != 5 {
		t.Fatalf("unexpected %+v", closed)
	}
	if _, err := s.CommitRating(ctx, commit); !errors.Is(err, rating.ErrNotAwaiting) {
		t.Fatalf("expected not awaiting, got %v", err)
	}

	agg, err := s.Load(ctx, r.ProviderID)
	if err != nil || agg.Version != 1 || agg.TotalReviews != 1 {
		t.Fatalf("unexpected aggregate %+v, %v", agg, err)
	}
	if err := s.SaveReconciled(ctx, agg, 0); !errors.Is(err, rating.ErrVersionConflict) {
		t.Fatalf("expected conflict for stale reconcile, got %v", err)
	}
	providers, err := s.ListProviders(ctx)
	if err != nil || fmt.Sprint(providers) != "[prov-1]" {
		t.Fatalf("unexpected providers %v, %v", providers, err)
	}
}
