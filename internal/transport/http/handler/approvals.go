package handler

import (
	"net/http"

	"github.com/go-alumni-api/internal/application/approval"
	"github.com/go-alumni-api/internal/domain"
)

// ApprovalHandler manages the pre-approval list (admin only).
type ApprovalHandler struct {
	svc approval.Service
}

func NewApprovalHandler(svc approval.Service) *ApprovalHandler { return &ApprovalHandler{svc: svc} }

func (h *ApprovalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateApprovalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *ApprovalHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Approval{}
	}
	writeJSON(w, http.StatusOK, list)
}
