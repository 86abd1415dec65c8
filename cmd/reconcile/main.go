// Command reconcile audits provider rating aggregates against the completed
// requests they are derived from, and optionally repairs drift.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/backend"
	"github.com/muthu-raja18/QuickServe-sub001/config"
	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/logger"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
)

type options struct {
	provider string
	all      bool
	fix      bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.provider, "provider", "", "provider id to check")
	fs.BoolVar(&opts.all, "all", false, "check every provider with ratings or completed work")
	fs.BoolVar(&opts.fix, "fix", false, "rewrite aggregates that drifted")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if (opts.provider == "") == !opts.all {
		return options{}, errors.New("exactly one of -provider or -all is required")
	}
	return opts, nil
}

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitDrifted = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code so deferred cleanup always runs first.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer logger.Sync(logr)

	b, err := backend.Open(ctx, cfg, logr)
	if err != nil {
		logr.Error("open backend", zap.Error(err))
		return exitFailed
	}
	defer func() {
		if err := b.Close(); err != nil {
			logr.Warn("close backend", zap.Error(err))
		}
	}()

	_, ratings := b.Services(logr)
	drifted, err := reconcile(ctx, ratings, opts, cfg.RatingMaxAttempts, stdout)
	if err != nil {
		logr.Error("reconcile failed", zap.Error(err))
		return exitFailed
	}
	if drifted > 0 && !opts.fix {
		return exitDrifted
	}
	return exitOK
}

// reconcile reports one line per provider and returns how many drifted.
func reconcile(ctx context.Context, svc *rating.Service, opts options, maxAttempts int, out io.Writer) (int, error) {
	providers := []string{opts.provider}
	if opts.all {
		var err error
		providers, err = svc.Providers(ctx)
		if err != nil {
			return 0, err
		}
	}

	drifted := 0
	var errs []error
	for _, id := range providers {
		var drift rating.Drift
		err := fault.Retry(ctx, maxAttempts, func(ctx context.Context) error {
			var err error
			if opts.fix {
				drift, err = svc.Reconcile(ctx, id)
			} else {
				drift, err = svc.Audit(ctx, id)
			}
			return err
		})
		if err != nil {
			fmt.Fprintf(out, "%s\terror\t%v\n", id, err)
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		if drift.InSync {
			fmt.Fprintf(out, "%s\tok\treviews=%d avg=%.1f\n", id, drift.Stored.TotalReviews, drift.Stored.Average)
			continue
		}
		drifted++
		state := "drift"
		if opts.fix {
			state = "fixed"
		}
		fmt.Fprintf(out, "%s\t%s\tstored=%v/%.1f recomputed=%v/%.1f\n", id, state,
			drift.Stored.Breakdown, drift.Stored.Average,
			drift.Recomputed.Breakdown, drift.Recomputed.Average)
	}
	return drifted, errors.Join(errs...)
}
