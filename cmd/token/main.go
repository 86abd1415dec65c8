// Command token mints a bearer token for a seeker or provider, signed with
// the configured secret and valid for TOKEN_TTL_MINUTES. It is meant for local
// development and operator calls to the audit and reconcile routes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muthu-raja18/QuickServe-sub001/config"
	"github.com/muthu-raja18/QuickServe-sub001/identity"
)

type options struct {
	subject string
	role    identity.Role
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var (
		opts options
		role string
	)
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.subject, "sub", "", "actor id to put in the sub claim")
	fs.StringVar(&role, "role", "", "seeker or provider")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.role = identity.Role(role)
	if opts.subject == "" {
		return options{}, errors.New("-sub is required")
	}
	if !opts.role.Valid() {
		return options{}, fmt.Errorf("-role must be seeker or provider, got %q", role)
	}
	return opts, nil
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(_ context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	token, err := mint(cfg, opts, time.Now)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func mint(cfg *config.Config, opts options, now func() time.Time) (string, error) {
	secret, err := cfg.SigningSecret()
	if err != nil {
		return "", err
	}
	return identity.NewIssuer(secret, cfg.TokenTTL).
		WithClock(now).
		Issue(identity.Actor{ID: opts.subject, Role: opts.role})
}
