package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-alumni-api/internal/config"
	"github.com/go-alumni-api/internal/domain"
	jwtinfra "github.com/go-alumni-api/internal/infrastructure/jwt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) user(args mock.Arguments) (*domain.User, error) {
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	return m.user(m.Called(ctx, id))
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.user(m.Called(ctx, email))
}
func (m *mockUserStore) GetByStudentID(ctx context.Context, studentID string) (*domain.User, error) {
	return m.user(m.Called(ctx, studentID))
}
func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Update(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) UpdateProfile(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) SetPassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return m.Called(ctx, id, passwordHash, at).Error(0)
}
func (m *mockUserStore) SetAvatar(ctx context.Context, id, avatarKey string, at time.Time) error {
	return m.Called(ctx, id, avatarKey, at).Error(0)
}
func (m *mockUserStore) List(ctx context.Context, limit, offset int) ([]domain.User, int, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.User), args.Int(1), args.Error(2)
}

// --- helpers ---

func newProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	p, err := jwtinfra.NewProvider(&config.Config{
		JWTSecret:       "session-test-secret-session-test-secret",
		JWTIssuer:       "alumni-api",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 720 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

func newService(t *testing.T, us *mockUserStore) (Service, *jwtinfra.Provider) {
	p := newProvider(t)
	return NewService(ServiceDeps{Users: us, Tokens: p}), p
}

func activeUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		UserID:       "u1",
		Email:        "alice@example.com",
		Role:         domain.RoleAlumni,
		PasswordHash: string(hash),
		Verified:     true,
		Enabled:      true,
	}
}

// --- Issue ---

func TestIssue_TwoDistinctTypedTokens(t *testing.T) {
	svc, p := newService(t, &mockUserStore{})

	tok, err := svc.Issue(&domain.User{UserID: "u1", Role: domain.RoleStudent})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.NotEqual(t, tok.AccessToken, tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, 3600, tok.ExpiresIn)

	access, err := p.Verify(tok.AccessToken, jwtinfra.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", access.UserID())
	assert.Equal(t, domain.RoleStudent, access.Role)

	refresh, err := p.Verify(tok.RefreshToken, jwtinfra.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", refresh.UserID())
	assert.WithinDuration(t, time.Now().Add(720*time.Hour), refresh.ExpiresAt.Time, time.Minute)

	_, err = p.Verify(tok.AccessToken, jwtinfra.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = p.Verify(tok.RefreshToken, jwtinfra.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// --- Refresh ---

func TestRefresh_IssuesNewPair(t *testing.T) {
	us := &mockUserStore{}
	u := activeUser(t, "password123")
	us.On("Get", mock.Anything, "u1").Return(u, nil)
	svc, _ := newService(t, us)

	first, err := svc.Issue(u)
	require.NoError(t, err)
	env, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, env.AccessToken)
	assert.NotEqual(t, first.RefreshToken, env.RefreshToken)
	assert.Equal(t, u, env.User)
	us.AssertExpectations(t)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	svc, _ := newService(t, &mockUserStore{})
	tok, err := svc.Issue(&domain.User{UserID: "u1", Role: domain.RoleAlumni})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), tok.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_RejectsGarbage(t *testing.T) {
	svc, _ := newService(t, &mockUserStore{})
	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRefresh_DisabledOrMissingIdentity(t *testing.T) {
	disabled := &domain.User{UserID: "u1", Role: domain.RoleAlumni}
	tests := []struct {
		name string
		user *domain.User
		err  error
	}{
		{"disabled", disabled, nil},
		{"missing", nil, domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			us := &mockUserStore{}
			us.On("Get", mock.Anything, "u1").Return(tc.user, tc.err)
			svc, _ := newService(t, us)
			tok, err := svc.Issue(&domain.User{UserID: "u1", Role: domain.RoleAlumni})
			require.NoError(t, err)

			_, err = svc.Refresh(context.Background(), tok.RefreshToken)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

// --- LoginWithPassword ---

func TestLoginWithPassword_ByEmail(t *testing.T) {
	us := &mockUserStore{}
	u := activeUser(t, "password123")
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	svc, _ := newService(t, us)

	env, err := svc.LoginWithPassword(context.Background(), PasswordLoginRequest{Identifier: " Alice@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "u1", env.User.UserID)
	assert.NotEmpty(t, env.RefreshToken)
	us.AssertExpectations(t)
}

func TestLoginWithPassword_ByStudentID(t *testing.T) {
	us := &mockUserStore{}
	u := activeUser(t, "password123")
	us.On("GetByStudentID", mock.Anything, "S-100").Return(u, nil)
	svc, _ := newService(t, us)

	_, err := svc.LoginWithPassword(context.Background(), PasswordLoginRequest{Identifier: "S-100", Password: "password123"})
	require.NoError(t, err)
	us.AssertExpectations(t)
}

func TestLoginWithPassword_Rejections(t *testing.T) {
	unverified := activeUser(t, "password123")
	unverified.Verified = false
	disabled := activeUser(t, "password123")
	disabled.Enabled = false

	tests := []struct {
		name     string
		user     *domain.User
		err      error
		password string
	}{
		{"unknown identity", nil, domain.ErrNotFound, "password123"},
		{"wrong password", activeUser(t, "password123"), nil, "password124"},
		{"unverified", unverified, nil, "password123"},
		{"disabled", disabled, nil, "password123"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			us := &mockUserStore{}
			us.On("GetByEmail", mock.Anything, "alice@example.com").Return(tc.user, tc.err)
			svc, _ := newService(t, us)

			_, err := svc.LoginWithPassword(context.Background(), PasswordLoginRequest{Identifier: "alice@example.com", Password: tc.password})
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestLoginWithPassword_Validation(t *testing.T) {
	svc, _ := newService(t, &mockUserStore{})
	_, err := svc.LoginWithPassword(context.Background(), PasswordLoginRequest{Identifier: "alice@example.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// --- Current ---

func TestCurrent(t *testing.T) {
	us := &mockUserStore{}
	u := activeUser(t, "password123")
	us.On("Get", mock.Anything, "u1").Return(u, nil)
	us.On("Get", mock.Anything, "u2").Return(&domain.User{UserID: "u2"}, nil)
	us.On("Get", mock.Anything, "u3").Return(nil, domain.ErrNotFound)
	svc, _ := newService(t, us)

	got, err := svc.Current(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = svc.Current(context.Background(), "u2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Current(context.Background(), "u3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
