// Package boltstore keeps requests and rating aggregates in a single BoltDB
// file. Bolt serializes writers, so every conditional write runs inside one
// db.Update and is atomic with the read that checks its precondition.
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"
	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/feed"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

var (
	bucketRequests   = []byte("requests")
	bucketByProvider = []byte("requests_by_provider")
	bucketBySeeker   = []byte("requests_by_seeker")
	bucketRatings    = []byte("provider_ratings")
)

// errRollback aborts a bolt transaction carrying a domain error out.
type errRollback struct{ err error }

func (e errRollback) Error() string { return e.err.Error() }

// Store implements request.Store, rating.Store and feed.Subscriber.
type Store struct {
	db  *bolt.DB
	hub *feed.Hub
	log *zap.Logger
}

// Open opens (or creates) the database at path and ensures the buckets exist.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, classify("boltstore: open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRequests, bucketByProvider, bucketBySeeker, bucketRatings} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, classify("boltstore: create buckets", err)
	}

	return &Store{db: db, hub: feed.NewHub(), log: log}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Subscribe signals after every committed write touching providerID.
func (s *Store) Subscribe(providerID string) (<-chan struct{}, func()) {
	return s.hub.Subscribe(providerID)
}

func indexKey(owner, id string) []byte {
	return []byte(owner + "\x00" + id)
}

func (s *Store) Create(ctx context.Context, r request.ServiceRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(toRequestRecord(r))
	if err != nil {
		return fmt.Errorf("boltstore: marshal request: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		if b.Get([]byte(r.ID)) != nil {
			return errRollback{request.ErrDuplicate}
		}
		if err := b.Put([]byte(r.ID), data); err != nil {
			return err
		}
		if r.ProviderID != "" {
			if err := tx.Bucket(bucketByProvider).Put(indexKey(r.ProviderID, r.ID), nil); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketBySeeker).Put(indexKey(r.SeekerID, r.ID), nil)
	})
	if err != nil {
		return classify("boltstore: create request", err)
	}
	s.hub.Publish(r.ProviderID)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (request.ServiceRequest, error) {
	if err := ctx.Err(); err != nil {
		return request.ServiceRequest{}, err
	}
	var out request.ServiceRequest
	err := s.db.View(func(tx *bolt.Tx) error {
		r, err := getRequest(tx, id)
		out = r
		return err
	})
	if err != nil {
		return request.ServiceRequest{}, classify("boltstore: get request", err)
	}
	return out, nil
}

func getRequest(tx *bolt.Tx, id string) (request.ServiceRequest, error) {
	v := tx.Bucket(bucketRequests).Get([]byte(id))
	if v == nil {
		return request.ServiceRequest{}, errRollback{request.ErrNotFound}
	}
	var rec requestRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return request.ServiceRequest{}, fault.Wrap(fault.KindIntegrity, "boltstore: decode request "+id, err)
	}
	return rec.domain(), nil
}

func putRequest(tx *bolt.Tx, r request.ServiceRequest) error {
	data, err := json.Marshal(toRequestRecord(r))
	if err != nil {
		return fmt.Errorf("boltstore: marshal request: %w", err)
	}
	return tx.Bucket(bucketRequests).Put([]byte(r.ID), data)
}

func (s *Store) ListByProvider(ctx context.Context, providerID string, statuses ...request.Status) ([]request.ServiceRequest, error) {
	return s.listIndexed(ctx, bucketByProvider, providerID, statuses)
}

func (s *Store) ListBySeeker(ctx context.Context, seekerID string, statuses ...request.Status) ([]request.ServiceRequest, error) {
	return s.listIndexed(ctx, bucketBySeeker, seekerID, statuses)
}

func (s *Store) listIndexed(ctx context.Context, index []byte, owner string, statuses []request.Status) ([]request.ServiceRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []request.ServiceRequest
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = scanIndex(tx, index, owner, statuses)
		return err
	})
	if err != nil {
		return nil, classify("boltstore: list requests", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func scanIndex(tx *bolt.Tx, index []byte, owner string, statuses []request.Status) ([]request.ServiceRequest, error) {
	var out []request.ServiceRequest
	prefix := []byte(owner + "\x00")
	c := tx.Bucket(index).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		r, err := getRequest(tx, string(k[len(prefix):]))
		if err != nil {
			return nil, err
		}
		if request.MatchStatus(r.Status, statuses) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Transition applies c inside a single write transaction.
func (s *Store) Transition(ctx context.Context, c request.Change) (request.ServiceRequest, error) {
	if err := ctx.Err(); err != nil {
		return request.ServiceRequest{}, err
	}
	var next request.ServiceRequest
	err := s.db.Update(func(tx *bolt.Tx) error {
		current, err := getRequest(tx, c.ID)
		if err != nil {
			if errors.Is(err, request.ErrNotFound) {
				return errRollback{request.ErrStale}
			}
			return err
		}
		next, err = c.Apply(current)
		if err != nil {
			return errRollback{err}
		}
		return putRequest(tx, next)
	})
	if err != nil {
		return request.ServiceRequest{}, classify("boltstore: transition", err)
	}
	s.hub.Publish(next.ProviderID)
	return next, nil
}

func (s *Store) Load(ctx context.Context, providerID string) (rating.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return rating.Aggregate{}, err
	}
	var out rating.Aggregate
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = getAggregate(tx, providerID)
		return err
	})
	if err != nil {
		return rating.Aggregate{}, classify("boltstore: load aggregate", err)
	}
	return out, nil
}

func getAggregate(tx *bolt.Tx, providerID string) (rating.Aggregate, error) {
	v := tx.Bucket(bucketRatings).Get([]byte(providerID))
	if v == nil {
		return rating.Aggregate{ProviderID: providerID}, nil
	}
	var rec aggregateRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return rating.Aggregate{}, fault.Wrap(fault.KindIntegrity, "boltstore: decode aggregate "+providerID, err)
	}
	return rec.domain(), nil
}

func casAggregate(tx *bolt.Tx, next rating.Aggregate, expected int64) error {
	current, err := getAggregate(tx, next.ProviderID)
	if err != nil {
		return err
	}
	if current.Version != expected {
		return errRollback{fmt.Errorf("%w: provider %s at version %d, expected %d",
			rating.ErrVersionConflict, next.ProviderID, current.Version, expected)}
	}
	data, err := json.Marshal(toAggregateRecord(next))
	if err != nil {
		return fmt.Errorf("boltstore: marshal aggregate: %w", err)
	}
	return tx.Bucket(bucketRatings).Put([]byte(next.ProviderID), data)
}

// CommitRating closes the request and swaps the aggregate in one transaction.
func (s *Store) CommitRating(ctx context.Context, c rating.Commit) (request.ServiceRequest, error) {
	if err := ctx.Err(); err != nil {
		return request.ServiceRequest{}, err
	}
	var closed request.ServiceRequest
	err := s.db.Update(func(tx *bolt.Tx) error {
		current, err := getRequest(tx, c.RequestID)
		if errors.Is(err, request.ErrNotFound) {
			return errRollback{rating.ErrNotAwaiting}
		}
		if err != nil {
			return err
		}
		if current.ProviderID != c.ProviderID || current.Status != request.StatusAwaitingConfirmation || current.Rated() {
			return errRollback{rating.ErrNotAwaiting}
		}
		stars := c.Stars
		closed = current
		closed.Rating = &stars
		closed.Review = c.Review
		request.Stamp(&closed, request.StatusCompleted, c.At)
		if err := putRequest(tx, closed); err != nil {
			return err
		}
		return casAggregate(tx, c.Next, c.Expected)
	})
	if err != nil {
		return request.ServiceRequest{}, classify("boltstore: commit rating", err)
	}
	s.hub.Publish(closed.ProviderID)
	return closed, nil
}

func (s *Store) SaveReconciled(ctx context.Context, next rating.Aggregate, expected int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return casAggregate(tx, next, expected)
	})
	return classify("boltstore: save aggregate", err)
}

func (s *Store) ListCompleted(ctx context.Context, providerID string) ([]request.ServiceRequest, error) {
	return s.ListByProvider(ctx, providerID, request.StatusCompleted)
}

func (s *Store) ListProviders(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRatings).ForEach(func(k, _ []byte) error {
			seen[string(k)] = struct{}{}
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketRequests).ForEach(func(_, v []byte) error {
			var rec requestRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fault.Wrap(fault.KindIntegrity, "boltstore: decode request", err)
			}
			if rec.ProviderID != "" && rec.Status == string(request.StatusCompleted) {
				seen[rec.ProviderID] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, classify("boltstore: list providers", err)
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// classify unwraps domain errors carried out of a transaction and marks bolt
// lock and lifecycle errors as transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rb errRollback
	if errors.As(err, &rb) {
		return rb.err
	}
	switch {
	case errors.Is(err, bolt.ErrTimeout), errors.Is(err, bolt.ErrDatabaseNotOpen):
		return fault.Wrap(fault.KindUnavailable, op, err)
	}
	if fault.KindOf(err) != fault.KindUnknown {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
