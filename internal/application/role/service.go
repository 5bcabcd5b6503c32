package role

import (
	"context"
	"fmt"

	"github.com/go-alumni-api/internal/domain"
)

type Service interface {
	List(ctx context.Context) ([]domain.Role, error)
	Get(ctx context.Context, name string) (*domain.Role, error)
}

// service serves the fixed role set; roles are not stored.
type service struct {
	roles []domain.Role
}

func NewService() Service {
	return &service{roles: domain.Roles}
}

func (s *service) List(context.Context) ([]domain.Role, error) {
	out := make([]domain.Role, len(s.roles))
	copy(out, s.roles)
	return out, nil
}

func (s *service) Get(_ context.Context, name string) (*domain.Role, error) {
	for _, r := range s.roles {
		if r.Name == name {
			r := r
			return &r, nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, domain.ErrNotFound)
}
