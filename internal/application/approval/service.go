package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-alumni-api/internal/domain"
	"github.com/go-alumni-api/internal/pkg/id"
	"github.com/go-alumni-api/internal/pkg/validate"
)

// CheckResult tells a prospective registrant whether a pre-approval is waiting.
type CheckResult struct {
	Approved bool   `json:"approved"`
	Role     string `json:"role,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req domain.CreateApprovalRequest) (*domain.Approval, error)
	List(ctx context.Context) ([]domain.Approval, error)
	Check(ctx context.Context, req domain.CheckApprovalRequest) (*CheckResult, error)
}

type service struct {
	repo domain.ApprovalRepository
	now  func() time.Time
}

func NewService(repo domain.ApprovalRepository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) Create(ctx context.Context, req domain.CreateApprovalRequest) (*domain.Approval, error) {
	req.Email = normalizeEmail(req.Email)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	email, studentID := req.Email, req.StudentID

	_, err := s.repo.FindUnused(ctx, email, studentID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("an unused approval already exists: %w", domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	a := &domain.Approval{ID: id.New(), Role: req.Role, CreatedAt: s.now().UTC()}
	if email != "" {
		a.Email = &email
	}
	if studentID != "" {
		a.StudentID = &studentID
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) List(ctx context.Context) ([]domain.Approval, error) {
	return s.repo.List(ctx)
}

func (s *service) Check(ctx context.Context, req domain.CheckApprovalRequest) (*CheckResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	a, err := s.repo.FindUnused(ctx, req.Email, req.StudentID)
	if errors.Is(err, domain.ErrNotFound) {
		return &CheckResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &CheckResult{Approved: true, Role: a.Role}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
