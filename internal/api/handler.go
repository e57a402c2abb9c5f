// Package api serves the operational HTTP surface of a generate run: probes,
// Prometheus metrics, generator status and policy reloads.
package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/shopsynth/internal/config"
	"github.com/gyaneshwarpardhi/shopsynth/internal/engine"
	"github.com/gyaneshwarpardhi/shopsynth/internal/policy"
)

// Supervisor is the part of the engine the API reads.
type Supervisor interface {
	Running() bool
	Snapshot() []engine.Status
}

// Reloader re-reads the config file from disk.
type Reloader interface {
	Reload() (*config.Config, error)
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng      Supervisor
	policies *policy.Source
	reloader Reloader
	mux      *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng Supervisor, policies *policy.Source, reloader Reloader, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{eng: eng, policies: policies, reloader: reloader, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())
	h.mux.HandleFunc("GET /v1/generators", h.listGenerators)
	h.mux.HandleFunc("GET /v1/policies", h.getPolicies)
	h.mux.HandleFunc("POST /v1/policies/reload", h.reloadPolicies)

	return loggingMiddleware(logger, h.mux)
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 until the engine runs, and while any generator is crashed.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if !h.eng.Running() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not running"})
		return
	}
	var crashed []string
	for _, s := range h.eng.Snapshot() {
		if s.State == engine.Crashed {
			crashed = append(crashed, s.Name)
		}
	}
	if len(crashed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "degraded",
			"crashed": crashed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// GET /v1/generators — per-generator state, counters and last error.
func (h *Handler) listGenerators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running":    h.eng.Running(),
		"generators": h.eng.Snapshot(),
	})
}

// GET /v1/policies — the tables generators currently sample from.
func (h *Handler) getPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.policies.Load())
}

// POST /v1/policies/reload — re-read the config file and swap the policies.
// A rejected file leaves the current tables in place.
func (h *Handler) reloadPolicies(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		writeError(w, http.StatusNotImplemented, "reload is not available")
		return
	}
	if _, err := h.reloader.Reload(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true})
}
