package http

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/go-alumni-api/internal/application/avatar"
	"github.com/go-alumni-api/internal/application/delivery"
	"github.com/go-alumni-api/internal/domain"
	jwtinfra "github.com/go-alumni-api/internal/infrastructure/jwt"
	"github.com/go-alumni-api/internal/infrastructure/telemetry"
	"github.com/go-alumni-api/internal/transport/http/handler"
)

// Store is the relational store the router requires: the repositories, a
// transaction boundary and a readiness check.
type Store interface {
	domain.UnitOfWork
	Ping(ctx context.Context) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Store       Store
	Queue       delivery.Queue
	JWTProvider *jwtinfra.Provider
	Avatars     avatar.ObjectStore
	// DeadLetters is optional; the admin dead-letter routes are mounted only when set.
	DeadLetters handler.DeadLetterStore
	Logger      *zerolog.Logger
	Metrics     *telemetry.Metrics
}
