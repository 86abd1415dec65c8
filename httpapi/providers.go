package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/feed"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// POST /v1/requests/{id}/rating. Aggregate version races are retried here;
// the rating service itself never retries.
func (a *api) submitRating(w http.ResponseWriter, r *http.Request) {
	var body ratingBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, a.Log, err)
		return
	}

	actor := actorFrom(r)
	id := chi.URLParam(r, "id")
	var res rating.Result
	err := fault.Retry(r.Context(), a.RatingMaxAttempts, func(ctx context.Context) error {
		var err error
		res, err = a.Ratings.Submit(ctx, actor, id, body.Stars, body.Review)
		return err
	})
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{
		Request:   toRequestResponse(res.Request, a.Now()),
		Aggregate: toAggregateResponse(res.Aggregate),
	})
}

// GET /v1/providers/{providerID}/rating is public.
func (a *api) getRating(w http.ResponseWriter, r *http.Request) {
	agg, err := a.Ratings.Get(r.Context(), chi.URLParam(r, "providerID"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateResponse(agg))
}

// ownProvider resolves the path provider and requires the caller to be it.
func (a *api) ownProvider(r *http.Request) (string, error) {
	providerID := chi.URLParam(r, "providerID")
	actor := actorFrom(r)
	if !actor.IsProvider() || actor.ID != providerID {
		return "", fmt.Errorf("%w: provider %s", request.ErrForbidden, providerID)
	}
	return providerID, nil
}

// GET /v1/providers/{providerID}/rating/audit
func (a *api) auditRating(w http.ResponseWriter, r *http.Request) {
	providerID, err := a.ownProvider(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	drift, err := a.Ratings.Audit(r.Context(), providerID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toDriftResponse(drift))
}

// POST /v1/providers/{providerID}/rating/reconcile
func (a *api) reconcileRating(w http.ResponseWriter, r *http.Request) {
	providerID, err := a.ownProvider(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	var drift rating.Drift
	err = fault.Retry(r.Context(), a.RatingMaxAttempts, func(ctx context.Context) error {
		var err error
		drift, err = a.Ratings.Reconcile(ctx, providerID)
		return err
	})
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toDriftResponse(drift))
}

// GET /v1/providers/{providerID}/feed?urgency=1h
func (a *api) getFeed(w http.ResponseWriter, r *http.Request) {
	providerID, err := a.ownProvider(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	filter, err := feed.ParseFilter(r.URL.Query().Get("urgency"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}

	view, err := feed.Snapshot(r.Context(), a.Feed, providerID, filter, a.Now())
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedResponse(view))

	for _, id := range view.Stale {
		if _, _, err := a.Requests.Expire(r.Context(), id); err != nil {
			a.Log.Warn("feed: sweep failed", zap.String("request_id", id), zap.Error(err))
		}
	}
}

// GET /v1/providers/{providerID}/feed/stream sends the feed as server-sent
// events, one "feed" event per derivation.
func (a *api) streamFeed(w http.ResponseWriter, r *http.Request) {
	providerID, err := a.ownProvider(r)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	filter, err := feed.ParseFilter(r.URL.Query().Get("urgency"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, a.Log, fault.New(fault.KindUnknown, "streaming unsupported"))
		return
	}

	watcher := feed.NewWatcher(providerID, a.Feed, a.Log).
		WithFilter(filter).
		WithSweeper(a.Requests).
		WithRefresh(a.FeedRefresh).
		WithClock(a.Now)
	if a.Changes != nil {
		watcher = watcher.WithSubscriber(a.Changes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	views := make(chan feed.View)
	go func() {
		_ = watcher.Run(ctx, views)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case view := <-views:
			data, err := json.Marshal(toFeedResponse(view))
			if err != nil {
				a.Log.Error("feed: encode view", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: feed\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
