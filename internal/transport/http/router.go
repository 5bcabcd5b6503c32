package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/go-alumni-api/internal/application/approval"
	"github.com/go-alumni-api/internal/application/auth"
	"github.com/go-alumni-api/internal/application/avatar"
	"github.com/go-alumni-api/internal/application/role"
	"github.com/go-alumni-api/internal/application/session"
	"github.com/go-alumni-api/internal/application/user"
	"github.com/go-alumni-api/internal/config"
	"github.com/go-alumni-api/internal/domain"
	"github.com/go-alumni-api/internal/transport/http/handler"
	appmiddleware "github.com/go-alumni-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router. ctx bounds the
// background work of the rate limiters.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// config.Load has already rejected malformed entries; on error no proxy is trusted.
	trusted, _ := cfg.TrustedProxyPrefixes()
	// Code issuance sends mail: 1 request/second per IP, burst of 5.
	issueRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(1), 5, trusted)
	// Redemption and password login guess secrets: 5 requests/second, burst of 10.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, trusted)

	authSvc := auth.NewService(auth.ServiceDeps{
		Store:      deps.Store,
		Queue:      deps.Queue,
		CodeTTL:    cfg.VerificationCodeTTL,
		BcryptCost: cfg.BcryptCost,
		Logger:     deps.Logger,
		Metrics:    deps.Metrics,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		Users:  deps.Store.Users(),
		Tokens: deps.JWTProvider,
		Logger: deps.Logger,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.Store.Users(), BcryptCost: cfg.BcryptCost})
	approvalSvc := approval.NewService(deps.Store.Approvals())
	avatarSvc := avatar.NewService(deps.Avatars, deps.Store.Users(), deps.Logger)
	roleSvc := role.NewService()

	healthH := handler.NewHealthHandler(deps.Store)
	authH := handler.NewAuthHandler(authSvc, sessionSvc, approvalSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc, avatarSvc)
	approvalH := handler.NewApprovalHandler(approvalSvc)
	roleH := handler.NewRoleHandler(roleSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(issueRL.Limit).Post("/auth/login/send-code", authH.SendLoginCode)
		r.With(sensitiveRL.Limit).Post("/auth/login/verify-code", authH.VerifyLoginCode)
		r.With(issueRL.Limit).Post("/auth/register/send-code", authH.SendRegistrationCode)
		r.With(sensitiveRL.Limit).Post("/auth/register/verify", authH.VerifyRegistration)
		r.With(sensitiveRL.Limit).Post("/auth/login-password", authH.LoginWithPassword)
		r.With(sensitiveRL.Limit).Post("/auth/check-approval", authH.CheckApproval)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.Get("/users/{id}/avatar", userH.GetAvatar)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.Current)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/roles", roleH.List)
			r.Post("/users/me/password", userH.ChangePassword)
			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Delete("/users/{id}", userH.Delete)
			r.Put("/users/{id}/avatar", userH.UploadAvatar)
			r.Get("/users/{id}/avatar/url", userH.AvatarURL)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
				r.Post("/approvals", approvalH.Create)
				r.Get("/approvals", approvalH.List)
				if deps.DeadLetters != nil {
					deadH := handler.NewDeadLetterHandler(deps.DeadLetters)
					r.Get("/dead-letters", deadH.List)
					r.Post("/dead-letters/{id}/resolve", deadH.Resolve)
				}
			})
		})
	})

	return r
}
