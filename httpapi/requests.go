package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/muthu-raja18/QuickServe-sub001/clock"
	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/identity"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// POST /v1/requests
func (a *api) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, a.Log, err)
		return
	}
	urgency, err := clock.ParseUrgency(body.Urgency)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}

	created, err := a.Requests.Create(r.Context(), actorFrom(r), request.CreateParams{
		ProviderID:  body.ProviderID,
		Category:    body.Category,
		Description: body.Description,
		Location:    request.Location{District: body.District, Block: body.Block},
		Urgency:     urgency,
	})
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestResponse(created, a.Now()))
}

// GET /v1/requests?status=pending,accepted lists the caller's requests by role.
func (a *api) listRequests(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}

	actor := actorFrom(r)
	var items []request.ServiceRequest
	if actor.Role == identity.RoleProvider {
		items, err = a.Requests.ListForProvider(r.Context(), actor, statuses...)
	} else {
		items, err = a.Requests.ListForSeeker(r.Context(), actor, statuses...)
	}
	if err != nil {
		writeError(w, a.Log, err)
		return
	}

	now := a.Now()
	out := make([]requestResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toRequestResponse(it, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func parseStatuses(raw string) ([]request.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []request.Status
	for _, part := range strings.Split(raw, ",") {
		s := request.Status(strings.TrimSpace(part))
		if !s.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", request.ErrInvalid, part)
		}
		out = append(out, s)
	}
	return out, nil
}

// GET /v1/requests/{id}
func (a *api) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := a.Requests.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(req, a.Now()))
}

type transitionFunc func(ctx context.Context, actor identity.Actor, id string) (request.ServiceRequest, error)

// POST /v1/requests/{id}/{accept|reject|cancel|start|complete}
func (a *api) transitionRequest(w http.ResponseWriter, r *http.Request) {
	actions := map[string]transitionFunc{
		"accept":   a.Requests.Accept,
		"reject":   a.Requests.Reject,
		"cancel":   a.Requests.Cancel,
		"start":    a.Requests.Start,
		"complete": a.Requests.MarkComplete,
	}
	action := chi.URLParam(r, "action")
	fn, ok := actions[action]
	if !ok {
		writeError(w, a.Log, fault.New(fault.KindNotFound, "unknown action "+action))
		return
	}

	req, err := fn(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(req, a.Now()))
}
