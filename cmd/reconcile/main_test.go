package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/muthu-raja18/QuickServe-sub001/boltstore"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr bool
	}{
		{[]string{"-provider", "prov-1"}, false},
		{[]string{"-all", "-fix"}, false},
		{nil, true},
		{[]string{"-all", "-provider", "prov-1"}, true},
		{[]string{"-bogus"}, true},
	}
	for _, tt := range tests {
		_, err := parseFlags(tt.args, io.Discard)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFlags(%v) err = %v, wantErr %v", tt.args, err, tt.wantErr)
		}
	}
}

// seedDrift stores one completed five-star job and an aggregate that claims
// a one-star review instead.
func seedDrift(t *testing.T, s *boltstore.Store) {
	t.Helper()
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := request.ServiceRequest{
		ID: "r-1", SeekerID: "seeker-1", ProviderID: "prov-1", Category: "painting",
		Location: request.Location{District: "Trichy"}, Urgency: "1d",
		Status: request.StatusPending, CreatedAt: t0, ExpiresAt: t0.Add(24 * time.Hour), UpdatedAt: t0,
	}
	if err := s.Create(ctx, r); err != nil {
		t.Fatal(err)
	}
	for _, step := range [][2]request.Status{
		{request.StatusPending, request.StatusAccepted},
		{request.StatusAccepted, request.StatusAwaitingConfirmation},
	} {
		if _, err := s.Transition(ctx, request.Change{ID: r.ID, From: step[0], To: step[1], At: t0}); err != nil {
			t.Fatal(err)
		}
	}
	next, _ := rating.Apply(rating.Aggregate{ProviderID: "prov-1"}, 5)
	next.Version = 1
	if _, err := s.CommitRating(ctx, rating.Commit{RequestID: r.ID, ProviderID: "prov-1", Stars: 5, At: t0, Next: next}); err != nil {
		t.Fatal(err)
	}
	wrong, _ := rating.Apply(rating.Aggregate{ProviderID: "prov-1"}, 1)
	wrong.Version = 2
	if err := s.SaveReconciled(ctx, wrong, 1); err != nil {
		t.Fatal(err)
	}
}

func TestReconcile_AuditThenFix(t *testing.T) {
	log := zaptest.NewLogger(t)
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "r.db"), log)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seedDrift(t, s)
	svc := rating.NewService(s, s, nil, log)
	ctx := context.Background()

	var out bytes.Buffer
	drifted, err := reconcile(ctx, svc, options{all: true}, 3, &out)
	if err != nil || drifted != 1 || !strings.Contains(out.String(), "prov-1\tdrift") {
		t.Fatalf("audit: drifted=%d err=%v out=%q", drifted, err, out.String())
	}

	out.Reset()
	if drifted, err = reconcile(ctx, svc, options{provider: "prov-1", fix: true}, 3, &out); err != nil || drifted != 1 {
		t.Fatalf("fix: drifted=%d err=%v", drifted, err)
	}
	if !strings.Contains(out.String(), "fixed") {
		t.Fatalf("expected fixed line, got %q", out.String())
	}

	out.Reset()
	if drifted, err = reconcile(ctx, svc, options{provider: "prov-1"}, 3, &out); err != nil || drifted != 0 {
		t.Fatalf("after fix: drifted=%d err=%v out=%q", drifted, err, out.String())
	}
}

func TestRun_ExitCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	log := zaptest.NewLogger(t)
	s, err := boltstore.Open(path, log)
	if err != nil {
		t.Fatal(err)
	}
	seedDrift(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("BOLT_PATH", path)
	t.Setenv("JWT_SECRET", "unused")
	t.Setenv("ENVIRONMENT", "development")
	ctx := context.Background()

	var stdout, stderr bytes.Buffer
	if code := run(ctx, []string{"-fix"}, &stdout, &stderr); code != exitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
	if code := run(ctx, []string{"-all"}, &stdout, &stderr); code != exitDrifted {
		t.Fatalf("expected drift exit, got %d (stdout=%q)", code, stdout.String())
	}
	// The store is closed on every path, so the next run can reopen it.
	if code := run(ctx, []string{"-all", "-fix"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected ok after fix, got %d", code)
	}
	if code := run(ctx, []string{"-provider", "prov-1"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected in-sync exit, got %d (stdout=%q)", code, stdout.String())
	}
}
