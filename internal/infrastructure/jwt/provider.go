package jwtinfra

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/go-alumni-api/internal/config"
	"github.com/go-alumni-api/internal/domain"
)

// TokenType separates access tokens from refresh tokens. Each is rejected
// where the other is required.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims holds the JWT payload fields. Subject is the user id.
type Claims struct {
	Role string    `json:"role"`
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// Provider signs and verifies session JWTs: HS256 with a shared secret, or
// RS256 when a PEM key pair is configured.
type Provider struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewProvider fails with domain.ErrConfig when no signing material is
// configured or the key files cannot be used.
func NewProvider(cfg *config.Config) (*Provider, error) {
	p := &Provider{
		issuer:     cfg.JWTIssuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
	switch {
	case cfg.HasJWTKeyPair():
		priv, pub, err := loadRSAKeys(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, domain.ErrConfig)
		}
		p.method, p.signKey, p.verifyKey = jwt.SigningMethodRS256, priv, pub
	case cfg.JWTSecret != "":
		key := []byte(cfg.JWTSecret)
		p.method, p.signKey, p.verifyKey = jwt.SigningMethodHS256, key, key
	default:
		return nil, fmt.Errorf("no JWT signing secret configured: %w", domain.ErrConfig)
	}
	if p.accessTTL <= 0 || p.refreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive: %w", domain.ErrConfig)
	}
	return p, nil
}

func loadRSAKeys(privPath, pubPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privBytes, err := os.ReadFile(privPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	pubBytes, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}
	return privKey, pubKey, nil
}

// TTL returns the lifetime of tokens of type typ.
func (p *Provider) TTL(typ TokenType) time.Duration {
	if typ == RefreshToken {
		return p.refreshTTL
	}
	return p.accessTTL
}

func (p *Provider) Sign(userID, role string, typ TokenType) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL(typ))),
		},
	}
	return jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
}

// Verify parses tokenStr and checks it is an unexpired token of type want.
// Every failure wraps domain.ErrUnauthorized.
func (p *Provider) Verify(tokenStr string, want TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%s token used where %s token required: %w", claims.Type, want, domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}
