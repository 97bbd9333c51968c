package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *database.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and, when a database is attached, whether
// it answers
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a health handler; db may be nil
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			loggerFrom(r.Context()).WithError(err).Warn("Health check database ping failed")
			respondWithJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "service": "carecoins"})
			return
		}
	}
	respondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "service": "carecoins"})
}
