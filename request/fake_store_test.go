package request

import (
	"context"
	"sort"
	"sync"
)

type memStore struct {
	mu    sync.Mutex
	items map[string]ServiceRequest
	// beforeTransition runs under the lock ahead of the conditional check so
	// tests can simulate a concurrent writer winning the race.
	beforeTransition func(r *ServiceRequest)
	transitionErr    error
	transitions      int
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]ServiceRequest)}
}

func (m *memStore) Create(_ context.Context, r ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[r.ID]; ok {
		return ErrDuplicate
	}
	m.items[r.ID] = r
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return ServiceRequest{}, ErrNotFound
	}
	return r, nil
}

func (m *memStore) ListByProvider(_ context.Context, providerID string, statuses ...Status) ([]ServiceRequest, error) {
	return m.filter(func(r ServiceRequest) bool { return r.ProviderID == providerID }, statuses), nil
}

func (m *memStore) ListBySeeker(_ context.Context, seekerID string, statuses ...Status) ([]ServiceRequest, error) {
	return m.filter(func(r ServiceRequest) bool { return r.SeekerID == seekerID }, statuses), nil
}

func (m *memStore) filter(keep func(ServiceRequest) bool, statuses []Status) []ServiceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ServiceRequest
	for _, r := range m.items {
		if keep(r) && MatchStatus(r.Status, statuses) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) Transition(_ context.Context, c Change) (ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionErr != nil {
		return ServiceRequest{}, m.transitionErr
	}
	cur, ok := m.items[c.ID]
	if !ok {
		return ServiceRequest{}, ErrStale
	}
	if m.beforeTransition != nil {
		m.beforeTransition(&cur)
		m.items[c.ID] = cur
		m.beforeTransition = nil
	}
	next, err := c.Apply(cur)
	if err != nil {
		return ServiceRequest{}, err
	}
	m.items[c.ID] = next
	m.transitions++
	return next, nil
}
