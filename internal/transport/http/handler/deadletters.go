package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/go-alumni-api/internal/domain"
)

// DeadLetterStore is satisfied by *dynamo.DeadLetterRepo.
type DeadLetterStore interface {
	ListByAddress(ctx context.Context, address string) ([]domain.DeadLetter, error)
	Resolve(ctx context.Context, id string, at time.Time) error
}

// DeadLetterHandler lets admins inspect and resolve abandoned code deliveries.
type DeadLetterHandler struct {
	store DeadLetterStore
}

func NewDeadLetterHandler(store DeadLetterStore) *DeadLetterHandler {
	return &DeadLetterHandler{store: store}
}

func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	address := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("address")))
	if address == "" {
		writeError(w, http.StatusUnprocessableEntity, "address query parameter required", domain.KindValidation)
		return
	}
	list, err := h.store.ListByAddress(r.Context(), address)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *DeadLetterHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Resolve(r.Context(), chi.URLParam(r, "id"), time.Now().UTC()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
