package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muthu-raja18/QuickServe-sub001/backend"
	"github.com/muthu-raja18/QuickServe-sub001/config"
	"github.com/muthu-raja18/QuickServe-sub001/httpapi"
	"github.com/muthu-raja18/QuickServe-sub001/identity"
	"github.com/muthu-raja18/QuickServe-sub001/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	logr, err := logger.New(cfg)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer logger.Sync(logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
	logr.Info("server exited gracefully")
}

// run serves until ctx is cancelled, then drains the server and workers.
func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	b, err := backend.Open(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logr.Warn("close backend", zap.Error(err))
		}
	}()

	server, err := newServer(cfg, b, logr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, worker := range b.Workers {
		worker := worker
		g.Go(func() error {
			if err := worker(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		logr.Info("server started",
			zap.String("port", cfg.Port),
			zap.String("backend", string(cfg.StoreBackend)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logr.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newServer(cfg *config.Config, b *backend.Backend, logr *zap.Logger) (*http.Server, error) {
	secret, err := cfg.SigningSecret()
	if err != nil {
		return nil, err
	}
	if cfg.UsesLocalSecret() {
		logr.Warn("JWT_SECRET not set, using the local development secret")
	}
	requests, ratings := b.Services(logr)

	handler := httpapi.NewRouter(httpapi.Deps{
		Requests:          requests,
		Ratings:           ratings,
		Feed:              b.Requests,
		Changes:           b.Changes,
		Verifier:          identity.NewVerifier(secret),
		Log:               logr,
		AllowedOrigins:    cfg.AllowedOrigins,
		RatingMaxAttempts: cfg.RatingMaxAttempts,
		FeedRefresh:       cfg.FeedRefresh,
		Health:            b.Health,
	})

	return &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset so feed streams are not cut off.
		IdleTimeout: 60 * time.Second,
	}, nil
}
