package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// Filter restricts a feed to one urgency class. The zero value shows all.
type Filter string

const FilterAll Filter = ""

// ErrInvalidFilter is returned for filters that are neither "all" nor an urgency class.
var ErrInvalidFilter = fault.New(fault.KindInvalid, "feed: unknown urgency filter")

// ParseFilter accepts "", "all", "1h", "2h" or "1d".
func ParseFilter(raw string) (Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return FilterAll, nil
	}
	if !clock.Urgency(raw).Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
	}
	return Filter(raw), nil
}

func (f Filter) match(u clock.Urgency) bool {
	return f == FilterAll || clock.Urgency(f) == u
}

// Item is one request in a provider's feed with its countdown.
type Item struct {
	Request   request.ServiceRequest
	Remaining clock.Remaining
	Urgent    bool
	Expired   bool
}

// View is one derivation of a provider's feed.
type View struct {
	ProviderID string
	Filter     Filter
	Items      []Item
	// Stale lists overdue requests still stored as pending, filter or not.
	Stale     []string
	DerivedAt time.Time
}

// Derive builds the feed from a snapshot of the provider's requests. It is a
// pure function of its inputs: expired items sort last, urgent items first,
// then by time left, expiry instant and id.
func Derive(providerID string, snapshot []request.ServiceRequest, filter Filter, now time.Time) View {
	view := View{ProviderID: providerID, Filter: filter, DerivedAt: now}
	for _, r := range snapshot {
		if r.ProviderID != providerID || r.Status != request.StatusPending {
			continue
		}
		rem := r.Remaining(now)
		if rem.Expired {
			view.Stale = append(view.Stale, r.ID)
		}
		if !filter.match(r.Urgency) {
			continue
		}
		view.Items = append(view.Items, Item{
			Request:   r,
			Remaining: rem,
			Urgent:    rem.Urgent(),
			Expired:   rem.Expired,
		})
	}

	sort.Slice(view.Items, func(i, j int) bool {
		return less(view.Items[i], view.Items[j])
	})
	sort.Strings(view.Stale)
	return view
}

func less(a, b Item) bool {
	if a.Expired != b.Expired {
		return !a.Expired
	}
	if a.Urgent != b.Urgent {
		return a.Urgent
	}
	if a.Remaining.Total != b.Remaining.Total {
		return a.Remaining.Total < b.Remaining.Total
	}
	if !a.Request.ExpiresAt.Equal(b.Request.ExpiresAt) {
		return a.Request.ExpiresAt.Before(b.Request.ExpiresAt)
	}
	return a.Request.ID < b.Request.ID
}

// Source reads a provider's requests from the store.
type Source interface {
	ListByProvider(ctx context.Context, providerID string, statuses ...request.Status) ([]request.ServiceRequest, error)
}

// Snapshot loads the provider's pending requests and derives a view.
func Snapshot(ctx context.Context, source Source, providerID string, filter Filter, now time.Time) (View, error) {
	pending, err := source.ListByProvider(ctx, providerID, request.StatusPending)
	if err != nil {
		return View{}, fmt.Errorf("feed: load %s: %w", providerID, err)
	}
	return Derive(providerID, pending, filter, now), nil
}
