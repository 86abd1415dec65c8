package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/config"
	"github.com/muthu-raja18/QuickServe-sub001/identity"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr bool
	}{
		{[]string{"-sub", "prov-1", "-role", "provider"}, false},
		{[]string{"-sub", "seeker-1", "-role", "seeker"}, false},
		{[]string{"-role", "seeker"}, true},
		{[]string{"-sub", "x", "-role", "admin"}, true},
		{[]string{"-bogus"}, true},
	}
	for _, tt := range tests {
		_, err := parseFlags(tt.args, io.Discard)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFlags(%v) err = %v, wantErr %v", tt.args, err, tt.wantErr)
		}
	}
}

func TestMint_HonoursTokenTTL(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s3cret", TokenTTL: 10 * time.Minute}
	issued := time.Now().Add(-11 * time.Minute)

	token, err := mint(cfg, options{subject: "prov-1", role: identity.RoleProvider}, func() time.Time { return issued })
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := identity.NewVerifier("s3cret").Verify(token); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected token past its ttl to be rejected, got %v", err)
	}

	fresh, err := mint(cfg, options{subject: "prov-1", role: identity.RoleProvider}, time.Now)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	actor, err := identity.NewVerifier("s3cret").Verify(fresh)
	if err != nil || actor.ID != "prov-1" || actor.Role != identity.RoleProvider {
		t.Fatalf("unexpected actor %+v, %v", actor, err)
	}
}

func TestMint_RefusesMissingSecret(t *testing.T) {
	cfg := &config.Config{Environment: "development", TokenTTL: time.Hour}
	if _, err := mint(cfg, options{subject: "s", role: identity.RoleSeeker}, time.Now); err == nil {
		t.Fatal("expected error without JWT_SECRET outside local")
	}
}

func TestRun_PrintsToken(t *testing.T) {
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("BOLT_PATH", "unused.db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL_MINUTES", "5")

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-sub", "seeker-9", "-role", "seeker"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	actor, err := identity.NewVerifier("s3cret").Verify(strings.TrimSpace(stdout.String()))
	if err != nil || actor.ID != "seeker-9" || !actor.IsSeeker() {
		t.Fatalf("unexpected actor %+v, %v", actor, err)
	}
}
