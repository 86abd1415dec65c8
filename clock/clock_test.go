package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func TestExpiresAt(t *testing.T) {
	cases := map[Urgency]time.Duration{
		UrgencyOneHour:  time.Hour,
		UrgencyTwoHours: 2 * time.Hour,
		UrgencyOneDay:   24 * time.Hour,
	}
	for u, want := range cases {
		got, err := ExpiresAt(t0, u)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", u, err)
		}
		if !got.Equal(t0.Add(want)) {
			t.Errorf("%s: expected %s, got %s", u, t0.Add(want), got)
		}
	}
}

func TestExpiresAt_UnknownUrgency(t *testing.T) {
	_, err := ExpiresAt(t0, Urgency("3h"))
	if !errors.Is(err, ErrUnknownUrgency) {
		t.Fatalf("expected ErrUnknownUrgency, got %v", err)
	}
	if fault.KindOf(err) != fault.KindInvalid {
		t.Fatalf("expected invalid kind, got %s", fault.KindOf(err))
	}
}

func TestUntil(t *testing.T) {
	expires := t0.Add(time.Hour)

	r := Until(expires, t0.Add(55*time.Minute))
	if r.Expired || r.Hours != 0 || r.Minutes != 5 {
		t.Fatalf("unexpected remaining %+v", r)
	}
	if !r.Urgent() {
		t.Errorf("5m left should be urgent")
	}
	if r.String() != "5m" {
		t.Errorf("unexpected render %q", r.String())
	}

	r = Until(t0.Add(65*time.Minute), t0)
	if r.Hours != 1 || r.Minutes != 5 || r.String() != "1h 5m" {
		t.Errorf("unexpected remaining %+v (%s)", r, r)
	}
	if r.Urgent() {
		t.Errorf("65m left should not be urgent")
	}
}

func TestUntil_Boundary(t *testing.T) {
	expires := t0.Add(time.Hour)

	if Until(expires, expires).Expired {
		t.Fatalf("the expiry instant itself is still live")
	}
	r := Until(expires, expires.Add(time.Nanosecond))
	if r != Expired {
		t.Fatalf("expected Expired sentinel, got %+v", r)
	}
	if r.Urgent() {
		t.Errorf("expired is never urgent")
	}
	if r.String() != "expired" || r.TotalMinutes() != -1 {
		t.Errorf("unexpected expired rendering %q / %d", r.String(), r.TotalMinutes())
	}
}

func TestUrgentThreshold(t *testing.T) {
	expires := t0.Add(time.Hour)
	if Until(expires, expires.Add(-UrgentThreshold)).Urgent() {
		t.Errorf("exactly 30m left is not urgent")
	}
	if !Until(expires, expires.Add(-UrgentThreshold+time.Second)).Urgent() {
		t.Errorf("just under 30m left is urgent")
	}
}

func TestParseUrgency(t *testing.T) {
	for _, u := range Urgencies() {
		got, err := ParseUrgency(string(u))
		if err != nil || got != u {
			t.Errorf("parse %s: got %s, %v", u, got, err)
		}
	}
	if _, err := ParseUrgency("all"); err == nil {
		t.Errorf("expected error for filter keyword")
	}
}
