package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/go-alumni-api/internal/application/user"
	"github.com/go-alumni-api/internal/domain"
	"github.com/go-alumni-api/internal/transport/http/middleware"
)

const maxBodyBytes = 1 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message"`
}

// ErrorEnvelope carries a human message and a machine-readable kind.
type ErrorEnvelope struct {
	Error string      `json:"error"`
	Code  domain.Kind `json:"code"`
}

// ExpiresEnvelope answers a code issuance.
type ExpiresEnvelope struct {
	ExpiresIn int `json:"expires_in"`
}

// PaginatedUsersEnvelope wraps paginated user list responses.
type PaginatedUsersEnvelope struct {
	MaxPage    int           `json:"max_page"`
	ActualPage int           `json:"actual_page"`
	PerPage    int           `json:"per_page"`
	Total      int           `json:"total"`
	Data       []domain.User `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, kind domain.Kind) {
	writeJSON(w, status, ErrorEnvelope{Error: msg, Code: kind})
}

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:           http.StatusUnprocessableEntity,
	domain.KindNotFound:             http.StatusNotFound,
	domain.KindConflict:             http.StatusConflict,
	domain.KindUnauthorized:         http.StatusUnauthorized,
	domain.KindForbidden:            http.StatusForbidden,
	domain.KindInvalidOrExpiredCode: http.StatusBadRequest,
	domain.KindDeliveryFailed:       http.StatusServiceUnavailable,
}

var kindMessage = map[domain.Kind]string{
	domain.KindInvalidOrExpiredCode: "invalid or expired code",
	domain.KindDeliveryFailed:       "code could not be delivered, try again shortly",
}

// writeServiceError encodes err by its kind. Anything unclassified is logged
// and reported as a generic internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error", domain.KindInternal)
		return
	}
	msg := kindMessage[kind]
	if msg == "" {
		msg = err.Error()
	}
	writeError(w, status, msg, kind)
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", domain.KindValidation)
		return false
	}
	return true
}

// actorFrom builds the acting user from the access token claims.
func actorFrom(w http.ResponseWriter, r *http.Request) (user.Actor, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", domain.KindUnauthorized)
		return user.Actor{}, false
	}
	return user.Actor{UserID: claims.UserID(), Role: claims.Role}, true
}
