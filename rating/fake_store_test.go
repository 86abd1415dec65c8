package rating

import (
	"context"
	"sort"
	"sync"

	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// memBackend is an in-memory request reader plus aggregate store with the
// same atomicity as the real backends.
type memBackend struct {
	mu         sync.Mutex
	requests   map[string]request.ServiceRequest
	aggregates map[string]Aggregate
	// beforeCommit runs under the lock so tests can simulate a racing writer.
	beforeCommit func(m *memBackend)
	commits      int
}

func newMemBackend() *memBackend {
	return &memBackend{
		requests:   make(map[string]request.ServiceRequest),
		aggregates: make(map[string]Aggregate),
	}
}

func (m *memBackend) put(r request.ServiceRequest) {
	m.mu.Lock()
	m.requests[r.ID] = r
	m.mu.Unlock()
}

func (m *memBackend) Get(_ context.Context, id string) (request.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return request.ServiceRequest{}, request.ErrNotFound
	}
	return r, nil
}

func (m *memBackend) Load(_ context.Context, providerID string) (Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.aggregates[providerID]
	if !ok {
		return Aggregate{ProviderID: providerID}, nil
	}
	return agg, nil
}

func (m *memBackend) CommitRating(_ context.Context, c Commit) (request.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeCommit != nil {
		hook := m.beforeCommit
		m.beforeCommit = nil
		hook(m)
	}

	r, ok := m.requests[c.RequestID]
	if !ok || r.ProviderID != c.ProviderID || r.Status != request.StatusAwaitingConfirmation || r.Rated() {
		return request.ServiceRequest{}, ErrNotAwaiting
	}
	if m.aggregates[c.ProviderID].Version != c.Expected {
		return request.ServiceRequest{}, ErrVersionConflict
	}

	stars := c.Stars
	r.Rating = &stars
	r.Review = c.Review
	request.Stamp(&r, request.StatusCompleted, c.At)
	m.requests[r.ID] = r
	m.aggregates[c.ProviderID] = c.Next
	m.commits++
	return r, nil
}

func (m *memBackend) SaveReconciled(_ context.Context, next Aggregate, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aggregates[next.ProviderID].Version != expected {
		return ErrVersionConflict
	}
	m.aggregates[next.ProviderID] = next
	return nil
}

func (m *memBackend) ListCompleted(_ context.Context, providerID string) ([]request.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []request.ServiceRequest
	for _, r := range m.requests {
		if r.ProviderID == providerID && r.Status == request.StatusCompleted {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memBackend) ListProviders(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]struct{}{}
	for _, r := range m.requests {
		if r.Status == request.StatusCompleted && r.ProviderID != "" {
			seen[r.ProviderID] = struct{}{}
		}
	}
	for id := range m.aggregates {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
