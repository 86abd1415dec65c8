package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func pending(id string, u clock.Urgency, left time.Duration) request.ServiceRequest {
	window, _ := u.Duration()
	expires := now.Add(left)
	return request.ServiceRequest{
		ID:         id,
		SeekerID:   "seeker-1",
		ProviderID: "prov-1",
		Urgency:    u,
		Status:     request.StatusPending,
		CreatedAt:  expires.Add(-window),
		ExpiresAt:  expires,
	}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Request.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDerive_Ordering(t *testing.T) {
	snapshot := []request.ServiceRequest{
		pending("expired", clock.UrgencyOneHour, -5*time.Minute),
		pending("45m", clock.UrgencyOneHour, 45*time.Minute),
		pending("10m", clock.UrgencyOneHour, 10*time.Minute),
	}
	view := Derive("prov-1", snapshot, FilterAll, now)

	if got := ids(view.Items); !equal(got, []string{"10m", "45m", "expired"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if !view.Items[0].Urgent || view.Items[1].Urgent || !view.Items[2].Expired {
		t.Fatalf("unexpected flags %+v", view.Items)
	}
	if !equal(view.Stale, []string{"expired"}) {
		t.Fatalf("expected expired id flagged for sweep, got %v", view.Stale)
	}
}

func TestDerive_TieBreaks(t *testing.T) {
	a := pending("b", clock.UrgencyOneDay, 3*time.Hour)
	b := pending("a", clock.UrgencyOneDay, 3*time.Hour)
	c := pending("c", clock.UrgencyTwoHours, -time.Minute)
	d := pending("d", clock.UrgencyOneHour, -2*time.Minute)
	view := Derive("prov-1", []request.ServiceRequest{a, c, b, d}, FilterAll, now)

	if got := ids(view.Items); !equal(got, []string{"a", "b", "d", "c"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestDerive_Filter(t *testing.T) {
	snapshot := []request.ServiceRequest{
		pending("one", clock.UrgencyOneHour, 20*time.Minute),
		pending("day", clock.UrgencyOneDay, 20*time.Hour),
		pending("gone", clock.UrgencyOneDay, -time.Hour),
	}
	view := Derive("prov-1", snapshot, Filter(clock.UrgencyOneHour), now)
	if got := ids(view.Items); !equal(got, []string{"one"}) {
		t.Fatalf("unexpected filtered items %v", got)
	}
	if !equal(view.Stale, []string{"gone"}) {
		t.Fatalf("stale ids are flagged regardless of filter, got %v", view.Stale)
	}
}

func TestDerive_IgnoresOtherRecords(t *testing.T) {
	accepted := pending("acc", clock.UrgencyOneHour, 20*time.Minute)
	accepted.Status = request.StatusAccepted
	foreign := pending("foreign", clock.UrgencyOneHour, 20*time.Minute)
	foreign.ProviderID = "prov-2"

	view := Derive("prov-1", []request.ServiceRequest{accepted, foreign}, FilterAll, now)
	if len(view.Items) != 0 || len(view.Stale) != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}
}

func TestDerive_IsPure(t *testing.T) {
	snapshot := []request.ServiceRequest{
		pending("x", clock.UrgencyTwoHours, 90*time.Minute),
		pending("y", clock.UrgencyOneHour, 5*time.Minute),
	}
	first := Derive("prov-1", snapshot, FilterAll, now)
	second := Derive("prov-1", snapshot, FilterAll, now)
	if !equal(ids(first.Items), ids(second.Items)) {
		t.Fatalf("derivation must be reproducible")
	}
	later := Derive("prov-1", snapshot, FilterAll, now.Add(time.Hour))
	if got := ids(later.Items); !equal(got, []string{"x", "y"}) {
		t.Fatalf("expected y to expire and sort last an hour later, got %v", got)
	}
}

func TestParseFilter(t *testing.T) {
	for _, raw := range []string{"", "all", "ALL"} {
		if f, err := ParseFilter(raw); err != nil || f != FilterAll {
			t.Errorf("%q: got %q, %v", raw, f, err)
		}
	}
	if f, err := ParseFilter("2h"); err != nil || f != Filter("2h") {
		t.Errorf("2h: got %q, %v", f, err)
	}
	if _, err := ParseFilter("soon"); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
}
