package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/folio/internal/storage"
)

const defaultPurgeAge = 7 * 24 * time.Hour

// QueueAdmin is the slice of the job store the admin API needs.
type QueueAdmin interface {
	Stats(ctx context.Context) (storage.QueueStats, error)
	PurgeCompleted(ctx context.Context, before time.Time) (int, error)
}

// CacheInvalidator drops a tenant's cached backend payload.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, username string) error
}

type AdminDeps struct {
	Token string

	// Queue is nil when analytics runs without an outbox.
	Queue QueueAdmin
	Cache CacheInvalidator
}

// NewAdminHandler returns the bearer-protected operator API.
func NewAdminHandler(deps AdminDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Get("/queue", handleQueueStats(deps))
	r.Post("/queue/purge", handleQueuePurge(deps))
	r.Post("/cache/{username}/invalidate", handleInvalidate(deps))

	return r
}

func handleQueueStats(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Queue == nil {
			httpError(w, http.StatusNotFound, "not_found_error", "analytics queue not enabled")
			return
		}
		stats, err := deps.Queue.Stats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading queue stats: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func handleQueuePurge(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Queue == nil {
			httpError(w, http.StatusNotFound, "not_found_error", "analytics queue not enabled")
			return
		}
		age := defaultPurgeAge
		if raw := r.URL.Query().Get("older_than"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid older_than %q", raw)
				return
			}
			age = d
		}
		n, err := deps.Queue.PurgeCompleted(r.Context(), time.Now().Add(-age))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "purging jobs: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"purged": n})
	}
}

func handleInvalidate(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(chi.URLParam(r, "username"))
		if username == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "username is required")
			return
		}
		if err := deps.Cache.Invalidate(r.Context(), username); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "invalidating %s: %v", username, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
