// Package httpapi exposes the request and rating services over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/feed"
	"github.com/muthu-raja18/QuickServe-sub001/identity"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// Deps are the collaborators the router needs. Changes is optional; without
// it live feeds refresh on FeedRefresh only.
type Deps struct {
	Requests          *request.Service
	Ratings           *rating.Service
	Feed              feed.Source
	Changes           feed.Subscriber
	Verifier          *identity.Verifier
	Log               *zap.Logger
	AllowedOrigins    []string
	RatingMaxAttempts int
	FeedRefresh       time.Duration
	Health            func(ctx context.Context) error
	Now               func() time.Time
}

type api struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.RatingMaxAttempts < 1 {
		d.RatingMaxAttempts = 5
	}
	if d.FeedRefresh <= 0 {
		d.FeedRefresh = 30 * time.Second
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", a.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers/{providerID}/rating", a.getRating)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", a.createRequest)
				r.Get("/", a.listRequests)
				r.Get("/{id}", a.getRequest)
				r.Post("/{id}/rating", a.submitRating)
				r.Post("/{id}/{action}", a.transitionRequest)
			})

			r.Route("/providers/{providerID}", func(r chi.Router) {
				r.Get("/feed", a.getFeed)
				r.Get("/feed/stream", a.streamFeed)
				r.Get("/rating/audit", a.auditRating)
				r.Post("/rating/reconcile", a.reconcileRating)
			})
		})
	})

	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Health(ctx); err != nil {
			a.Log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
