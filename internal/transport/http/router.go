// Package http exposes the worker's read-only operational surface:
// liveness and last-tick introspection. Product and preference management
// live in a separate API service.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/restockwatch/worker/internal/application/poller"
)

// Deps holds everything the ops endpoints read from.
type Deps struct {
	Scheduler *poller.Scheduler
}

type statusResponse struct {
	Status string                       `json:"status"`
	Uptime string                       `json:"uptime"`
	Ticks  map[string]poller.TickReport `json:"ticks"`
}

// NewRouter builds the ops router.
func NewRouter(deps *Deps) http.Handler {
	started := time.Now().UTC()

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{
			Status: "ok",
			Uptime: time.Since(started).Round(time.Second).String(),
			Ticks:  deps.Scheduler.Last(),
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
