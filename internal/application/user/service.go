package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-alumni-api/internal/domain"
	"github.com/go-alumni-api/internal/pkg/validate"
)

const maxPerPage = 100

// Actor is the authenticated caller a request acts on behalf of.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// canAccess reports whether a may read or modify the user userID.
func (a Actor) canAccess(userID string) bool { return a.IsAdmin() || a.UserID == userID }

type Page struct {
	Users   []domain.User
	Total   int
	Page    int
	PerPage int
}

// MaxPage is the last page number, never below 1.
func (p Page) MaxPage() int {
	if p.PerPage < 1 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

type Service interface {
	List(ctx context.Context, page, perPage int) (*Page, error)
	Get(ctx context.Context, actor Actor, userID string) (*domain.User, error)
	// Update applies a partial update. Only admins may change role or enabled.
	Update(ctx context.Context, actor Actor, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	// Delete disables the user; rows are never removed.
	Delete(ctx context.Context, actor Actor, userID string) error
	ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error
}

type service struct {
	repo       domain.UserRepository
	bcryptCost int
	now        func() time.Time
}

type ServiceDeps struct {
	UserRepo   domain.UserRepository
	BcryptCost int
	Now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.UserRepo, bcryptCost: deps.BcryptCost, now: deps.Now}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) List(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	users, total, err := s.repo.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	return &Page{Users: users, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, userID string) (*domain.User, error) {
	if !actor.canAccess(userID) {
		return nil, fmt.Errorf("cannot view another user: %w", domain.ErrForbidden)
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, actor Actor, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	if !actor.canAccess(userID) {
		return nil, fmt.Errorf("cannot update another user: %w", domain.ErrForbidden)
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if (req.Role != nil || req.Enabled != nil) && !actor.IsAdmin() {
		return nil, fmt.Errorf("only admins may change role or status: %w", domain.ErrForbidden)
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	changed := false
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
		changed = true
	}
	if req.StudentID != nil {
		if sid := strings.TrimSpace(*req.StudentID); sid != "" {
			u.StudentID = &sid
		} else {
			u.StudentID = nil
		}
		changed = true
	}
	if req.Role != nil {
		u.Role = *req.Role
		changed = true
	}
	if req.Enabled != nil {
		u.Enabled = *req.Enabled
		changed = true
	}
	if !changed {
		return u, nil
	}
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Delete(ctx context.Context, actor Actor, userID string) error {
	if !actor.canAccess(userID) {
		return fmt.Errorf("cannot delete another user: %w", domain.ErrForbidden)
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Enabled {
		return nil
	}
	u.Enabled = false
	u.UpdatedAt = s.now().UTC()
	return s.repo.UpdateProfile(ctx, u)
}

func (s *service) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, u.UserID, string(hash), s.now().UTC())
}
