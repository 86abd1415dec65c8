// Package backend assembles the stores, change feed and notification sink for
// the configured STORE_BACKEND.
package backend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/boltstore"
	"github.com/muthu-raja18/QuickServe-sub001/config"
	"github.com/muthu-raja18/QuickServe-sub001/db"
	"github.com/muthu-raja18/QuickServe-sub001/dynamostore"
	"github.com/muthu-raja18/QuickServe-sub001/feed"
	"github.com/muthu-raja18/QuickServe-sub001/notify"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// Backend is one opened storage stack. Workers must run for the lifetime of
// the process (LISTEN loop, outbox relay); Close releases everything.
type Backend struct {
	Requests request.Store
	Ratings  rating.Store
	// Changes is nil when the store has no push channel.
	Changes feed.Subscriber
	Sink    notify.Sink
	Health  func(ctx context.Context) error
	Workers []func(ctx context.Context) error

	closers []func() error
}

func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// Open connects to the configured store. Postgres is migrated on open;
// DynamoDB tables are created when they are missing.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, log)
	case config.BackendBolt:
		return openBolt(cfg, log)
	case config.BackendDynamoDB:
		return openDynamo(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("backend: unknown store %q", cfg.StoreBackend)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("backend: postgres pool: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("backend: migrate: %w", err)
	}

	listener := feed.NewPGListener(pool, log)
	relay := notify.NewRelay(pool, notify.NewLogSink(log), log).WithInterval(cfg.OutboxPoll)

	return &Backend{
		Requests: request.NewPGStore(pool),
		Ratings:  rating.NewPGStore(pool),
		Changes:  listener,
		Sink:     notify.NewOutbox(pool),
		Health:   pool.Ping,
		Workers:  []func(context.Context) error{listener.Run, relay.Run},
		closers:  []func() error{func() error { pool.Close(); return nil }},
	}, nil
}

func openBolt(cfg *config.Config, log *zap.Logger) (*Backend, error) {
	store, err := boltstore.Open(cfg.BoltPath, log)
	if err != nil {
		return nil, fmt.Errorf("backend: bolt: %w", err)
	}
	return &Backend{
		Requests: store,
		Ratings:  store,
		Changes:  store,
		Sink:     notify.NewLogSink(log),
		closers:  []func() error{store.Close},
	}, nil
}

func openDynamo(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	client, err := dynamostore.NewClient(ctx, dynamostore.ClientOptions{
		Region:   cfg.AWSRegion,
		Endpoint: cfg.DynamoDBEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("backend: dynamodb client: %w", err)
	}
	if err := dynamostore.EnsureTables(ctx, client, cfg.RequestsTable, cfg.RatingsTable); err != nil {
		return nil, fmt.Errorf("backend: dynamodb tables: %w", err)
	}
	store := dynamostore.NewStore(client, cfg.RequestsTable, cfg.RatingsTable, log)
	return &Backend{
		Requests: store,
		Ratings:  store,
		Sink:     notify.NewLogSink(log),
	}, nil
}

// Services builds the request and rating services over b.
func (b *Backend) Services(log *zap.Logger) (*request.Service, *rating.Service) {
	emitter := notify.NewEmitter(b.Sink, log)
	return request.NewService(b.Requests, emitter, log), rating.NewService(b.Requests, b.Ratings, emitter, log)
}
