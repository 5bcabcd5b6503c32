package handler

import (
	"net/http"

	"github.com/go-alumni-api/internal/application/approval"
	"github.com/go-alumni-api/internal/application/auth"
	"github.com/go-alumni-api/internal/application/session"
	"github.com/go-alumni-api/internal/domain"
)

// AuthHandler handles passwordless login and registration by emailed code.
type AuthHandler struct {
	codes     auth.Service
	sessions  session.Service
	approvals approval.Service
}

func NewAuthHandler(codes auth.Service, sessions session.Service, approvals approval.Service) *AuthHandler {
	return &AuthHandler{codes: codes, sessions: sessions, approvals: approvals}
}

type loginCodeRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type registrationRequest struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, address string, purpose domain.Purpose) {
	res, err := h.codes.IssueCode(r.Context(), auth.IssueCodeRequest{Address: address, Purpose: purpose})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ExpiresEnvelope{ExpiresIn: res.ExpiresIn})
}

func (h *AuthHandler) SendLoginCode(w http.ResponseWriter, r *http.Request) {
	var req loginCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.issue(w, r, req.Identifier, domain.PurposeLogin)
}

func (h *AuthHandler) SendRegistrationCode(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.issue(w, r, req.Email, domain.PurposeRegistration)
}

func (h *AuthHandler) redeem(w http.ResponseWriter, r *http.Request, status int, req auth.RedeemCodeRequest) {
	u, err := h.codes.RedeemCode(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tokens, err := h.sessions.Issue(u)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, domain.AuthEnvelope{Tokens: *tokens, User: u})
}

func (h *AuthHandler) VerifyLoginCode(w http.ResponseWriter, r *http.Request) {
	var req loginCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.redeem(w, r, http.StatusOK, auth.RedeemCodeRequest{
		Address: req.Identifier,
		Code:    req.Code,
		Purpose: domain.PurposeLogin,
	})
}

func (h *AuthHandler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.redeem(w, r, http.StatusCreated, auth.RedeemCodeRequest{
		Address: req.Email,
		Code:    req.Code,
		Purpose: domain.PurposeRegistration,
		Registration: &auth.Registration{
			Password:  req.Password,
			Name:      req.Name,
			StudentID: req.StudentID,
		},
	})
}

func (h *AuthHandler) LoginWithPassword(w http.ResponseWriter, r *http.Request) {
	var req session.PasswordLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	env, err := h.sessions.LoginWithPassword(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *AuthHandler) CheckApproval(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckApprovalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.approvals.Check(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
