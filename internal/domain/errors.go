package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrInvalidOrExpiredCode covers a wrong, expired or already used code.
	// Callers must not be able to tell these cases apart.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
	ErrDeliveryFailed       = errors.New("verification code delivery failed")
	ErrConfig               = errors.New("configuration error")
)

// Kind is the tagged classification of an error returned by a service.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindInvalidOrExpiredCode Kind = "invalid_or_expired_code"
	KindDeliveryFailed       Kind = "delivery_failed"
	KindConfig               Kind = "config_error"
	KindInternal             Kind = "internal"
	KindRateLimited          Kind = "rate_limited"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidOrExpiredCode, KindInvalidOrExpiredCode},
	{ErrDeliveryFailed, KindDeliveryFailed},
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrConflict, KindConflict},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrConfig, KindConfig},
}

// KindOf classifies err. Unrecognised errors are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
