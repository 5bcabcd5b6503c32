package avatar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-alumni-api/internal/domain"
	s3infra "github.com/go-alumni-api/internal/infrastructure/s3"
	"github.com/go-alumni-api/internal/pkg/id"
)

// MaxSize bounds an avatar upload in bytes.
const MaxSize = 5 << 20

const urlTTL = 15 * time.Minute

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	UserID      string
	RequesterID string
	IsAdmin     bool
}

type Service interface {
	// Upload stores the image and points the user's avatar at it. The
	// previous object, if any, is removed.
	Upload(ctx context.Context, input UploadInput) (*domain.User, error)
	Open(ctx context.Context, userID string) (io.ReadCloser, string, error)
	URL(ctx context.Context, userID string) (string, error)
}

// ObjectStore is satisfied by *s3infra.Store.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	store  ObjectStore
	users  domain.UserRepository
	logger *zerolog.Logger
	now    func() time.Time
}

func NewService(store ObjectStore, users domain.UserRepository, logger *zerolog.Logger) Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &service{store: store, users: users, logger: logger, now: time.Now}
}

func (s *service) Upload(ctx context.Context, in UploadInput) (*domain.User, error) {
	if in.RequesterID != in.UserID && !in.IsAdmin {
		return nil, fmt.Errorf("cannot change another user's avatar: %w", domain.ErrForbidden)
	}
	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = s3infra.DetectContentType(in.Filename)
	}
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported avatar type %q: %w", contentType, domain.ErrValidation)
	}
	if in.Size > MaxSize {
		return nil, fmt.Errorf("avatar larger than %d bytes: %w", MaxSize, domain.ErrValidation)
	}

	// The declared size can be absent or wrong; one byte past MaxSize proves it too big.
	body, err := io.ReadAll(io.LimitReader(in.Reader, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if len(body) > MaxSize {
		return nil, fmt.Errorf("avatar larger than %d bytes: %w", MaxSize, domain.ErrValidation)
	}

	u, err := s.users.Get(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	key := path.Join("avatars", u.UserID, id.New()+ext)
	if err := s.store.Upload(ctx, key, bytes.NewReader(body), contentType); err != nil {
		return nil, err
	}

	previous := u.AvatarKey
	u.AvatarKey = key
	u.HasAvatar = true
	u.UpdatedAt = s.now().UTC()
	if err := s.users.SetAvatar(ctx, u.UserID, key, u.UpdatedAt); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("could not remove orphaned avatar")
		}
		return nil, err
	}
	if previous != "" && previous != key {
		if err := s.store.Delete(ctx, previous); err != nil {
			s.logger.Warn().Err(err).Str("key", previous).Msg("could not remove previous avatar")
		}
	}
	return u, nil
}

func (s *service) avatarKey(ctx context.Context, userID string) (string, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(u.AvatarKey) == "" || !u.Enabled {
		return "", fmt.Errorf("avatar: %w", domain.ErrNotFound)
	}
	return u.AvatarKey, nil
}

func (s *service) Open(ctx context.Context, userID string) (io.ReadCloser, string, error) {
	key, err := s.avatarKey(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	return s.store.Download(ctx, key)
}

func (s *service) URL(ctx context.Context, userID string) (string, error) {
	key, err := s.avatarKey(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.store.PresignedURL(ctx, key, urlTTL)
}
