package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-alumni-api/internal/domain"
	jwtinfra "github.com/go-alumni-api/internal/infrastructure/jwt"
	"github.com/go-alumni-api/internal/pkg/validate"
)

// PasswordLoginRequest authenticates with an email or student id and a password.
type PasswordLoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required"`
}

type Service interface {
	// Issue signs a fresh access/refresh pair for u.
	Issue(u *domain.User) (*domain.Tokens, error)
	// Refresh exchanges a refresh token for a new pair. The identity must
	// still exist and be enabled.
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthEnvelope, error)
	LoginWithPassword(ctx context.Context, req PasswordLoginRequest) (*domain.AuthEnvelope, error)
	Current(ctx context.Context, userID string) (*domain.User, error)
}

type tokenProvider interface {
	Sign(userID, role string, typ jwtinfra.TokenType) (string, error)
	Verify(token string, want jwtinfra.TokenType) (*jwtinfra.Claims, error)
	TTL(typ jwtinfra.TokenType) time.Duration
}

type service struct {
	users  domain.UserRepository
	tokens tokenProvider
	logger *zerolog.Logger
}

type ServiceDeps struct {
	Users  domain.UserRepository
	Tokens tokenProvider
	Logger *zerolog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{users: deps.Users, tokens: deps.Tokens, logger: deps.Logger}
	if s.logger == nil {
		nop := zerolog.Nop()
		s.logger = &nop
	}
	return s
}

func (s *service) Issue(u *domain.User) (*domain.Tokens, error) {
	access, err := s.tokens.Sign(u.UserID, u.Role, jwtinfra.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.tokens.Sign(u.UserID, u.Role, jwtinfra.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &domain.Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.TTL(jwtinfra.AccessToken).Seconds()),
	}, nil
}

func (s *service) envelope(u *domain.User) (*domain.AuthEnvelope, error) {
	t, err := s.Issue(u)
	if err != nil {
		return nil, err
	}
	return &domain.AuthEnvelope{Tokens: *t, User: u}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.AuthEnvelope, error) {
	claims, err := s.tokens.Verify(refreshToken, jwtinfra.RefreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, claims.UserID())
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !u.Enabled) {
		return nil, fmt.Errorf("account no longer active: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return s.envelope(u)
}

func (s *service) LoginWithPassword(ctx context.Context, req PasswordLoginRequest) (*domain.AuthEnvelope, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	identifier := strings.TrimSpace(req.Identifier)
	var (
		u   *domain.User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = s.users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.users.GetByStudentID(ctx, identifier)
	}
	invalid := fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, invalid
	case err != nil:
		return nil, err
	case !u.Enabled || !u.Verified || u.PasswordHash == "":
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("user_id", u.UserID).Msg("password login rejected")
		return nil, invalid
	}
	return s.envelope(u)
}

func (s *service) Current(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Enabled {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	return u, nil
}
