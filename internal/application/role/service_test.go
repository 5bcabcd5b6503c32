package role

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-alumni-api/internal/domain"
)

func TestList_ReturnsCopy(t *testing.T) {
	svc := NewService()
	roles, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, len(domain.Roles))

	roles[0].Name = "mutated"
	again, _ := svc.List(context.Background())
	assert.NotEqual(t, "mutated", again[0].Name)
}

func TestGet(t *testing.T) {
	svc := NewService()
	r, err := svc.Get(context.Background(), domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, r.Name)

	_, err = svc.Get(context.Background(), "superuser")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
