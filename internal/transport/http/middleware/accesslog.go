package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RequestLogger attaches logger to each request context and writes one
// access line per request once the handler returns.
func RequestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	attach := hlog.NewHandler(*logger)
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		ev := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			ev = hlog.FromRequest(r).Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Dur("latency", duration).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("remote_ip", peerIP(r)).
			Str("forwarded_for", r.Header.Get("X-Forwarded-For")).
			Msg("request")
	})
	return func(next http.Handler) http.Handler {
		return attach(access(next))
	}
}
