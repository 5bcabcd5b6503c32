package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/go-alumni-api/internal/domain"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler { return &HealthHandler{db: db} }

// Ping answers /health-check/{action}: "ping" is liveness, "ready" also
// checks the store.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("store not ready")
			writeError(w, http.StatusServiceUnavailable, "store unavailable", domain.KindInternal)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action", domain.KindValidation)
	}
}
