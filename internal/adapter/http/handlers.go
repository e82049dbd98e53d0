// Package http receives test-run lifecycle events over HTTP and forwards
// them to a lifecycle emitter.
package http

import (
	"net/http"

	"github.com/Strob0t/specnotify/internal/port/lifecycle"
)

// Handlers holds the event sink behind the HTTP routes.
type Handlers struct {
	Events *lifecycle.Emitter
}

// NewHandlers creates handlers that forward to events.
func NewHandlers(events *lifecycle.Emitter) *Handlers {
	return &Handlers{Events: events}
}

type acceptedResponse struct {
	Status string `json:"status"`
}

// RunStarted handles POST /api/v1/runs.
func (h *Handlers) RunStarted(w http.ResponseWriter, r *http.Request) {
	details, ok := readJSON[lifecycle.RunDetails](w, r)
	if !ok {
		return
	}
	h.Events.EmitRunStarted(r.Context(), details)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

// SpecFinished handles POST /api/v1/specs.
func (h *Handlers) SpecFinished(w http.ResponseWriter, r *http.Request) {
	ev, ok := readJSON[lifecycle.SpecEvent](w, r)
	if !ok {
		return
	}
	if !requireField(w, ev.Spec.Relative, "spec.relative") {
		return
	}
	h.Events.EmitSpecFinished(r.Context(), ev.Spec, ev.Results)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
