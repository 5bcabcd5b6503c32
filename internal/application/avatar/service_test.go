package avatar

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-alumni-api/internal/domain"
)

// --- mocks ---

type mockObjectStore struct{ mock.Mock }

func (m *mockObjectStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	_, _ = io.Copy(io.Discard, r)
	return m.Called(ctx, key, contentType).Error(0)
}
func (m *mockObjectStore) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.String(1), args.Error(2)
}
func (m *mockObjectStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}
func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) one(args mock.Arguments) (*domain.User, error) {
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	return m.one(m.Called(ctx, id))
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.one(m.Called(ctx, email))
}
func (m *mockUserStore) GetByStudentID(ctx context.Context, studentID string) (*domain.User, error) {
	return m.one(m.Called(ctx, studentID))
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

func upload(userID, requester string) UploadInput {
	return UploadInput{
		Reader:      strings.NewReader("fake-png"),
		Filename:    "me.png",
		ContentType: "image/png",
		Size:        8,
		UserID:      userID,
		RequesterID: requester,
	}
}

// --- Upload ---

func TestUpload_ReplacesPreviousAvatar(t *testing.T) {
	store, users := &mockObjectStore{}, &mockUserStore{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", AvatarKey: "avatars/u1/old.png", Enabled: true}, nil)
	store.On("Upload", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "avatars/u1/") && strings.HasSuffix(k, ".png")
	}), "image/png").Return(nil)
	users.On("SetAvatar", mock.Anything, "u1", mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "avatars/u1/")
	}), mock.Anything).Return(nil)
	store.On("Delete", mock.Anything, "avatars/u1/old.png").Return(nil)

	u, err := NewService(store, users, nil).Upload(context.Background(), upload("u1", "u1"))
	require.NoError(t, err)
	assert.NotEqual(t, "avatars/u1/old.png", u.AvatarKey)
	store.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestUpload_ContentTypeFromFilename(t *testing.T) {
	store, users := &mockObjectStore{}, &mockUserStore{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	store.On("Upload", mock.Anything, mock.Anything, "image/jpeg").Return(nil)
	users.On("SetAvatar", mock.Anything, "u1", mock.Anything, mock.Anything).Return(nil)

	in := upload("u1", "u1")
	in.Filename, in.ContentType = "me.JPG", ""
	_, err := NewService(store, users, nil).Upload(context.Background(), in)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestUpload_Rejections(t *testing.T) {
	svc := NewService(&mockObjectStore{}, &mockUserStore{}, nil)

	_, err := svc.Upload(context.Background(), upload("u1", "u2"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	in := upload("u1", "u1")
	in.ContentType, in.Filename = "application/pdf", "cv.pdf"
	_, err = svc.Upload(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = upload("u1", "u1")
	in.Size = MaxSize + 1
	_, err = svc.Upload(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpload_OversizedBodyWithUnknownSize(t *testing.T) {
	store, users := &mockObjectStore{}, &mockUserStore{}
	in := upload("u1", "u1")
	in.Size = 0
	in.Reader = bytes.NewReader(make([]byte, MaxSize+1))

	_, err := NewService(store, users, nil).Upload(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "SetAvatar", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_BodyAtMaxSizeIsStored(t *testing.T) {
	store, users := &mockObjectStore{}, &mockUserStore{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	store.On("Upload", mock.Anything, mock.Anything, "image/png").Return(nil)
	users.On("SetAvatar", mock.Anything, "u1", mock.Anything, mock.Anything).Return(nil)

	in := upload("u1", "u1")
	in.Size = -1
	in.Reader = bytes.NewReader(make([]byte, MaxSize))
	u, err := NewService(store, users, nil).Upload(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, u.HasAvatar)
	store.AssertExpectations(t)
}

func TestUpload_AdminMayUploadForOthers(t *testing.T) {
	store, users := &mockObjectStore{}, &mockUserStore{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	store.On("Upload", mock.Anything, mock.Anything, "image/png").Return(nil)
	users.On("SetAvatar", mock.Anything, "u1", mock.Anything, mock.Anything).Return(nil)

	in := upload("u1", "admin")
	in.IsAdmin = true
	_, err := NewService(store, users, nil).Upload(context.Background(), in)
	assert.NoError(t, err)
}

func TestUpload_UpdateFailureRemovesObject(t *testing.T) {
	store, users := &mockObjectStore{}, &mockUserStore{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	store.On("Upload", mock.Anything, mock.Anything, "image/png").Return(nil)
	users.On("SetAvatar", mock.Anything, "u1", mock.Anything, mock.Anything).Return(errors.New("database is locked"))
	store.On("Delete", mock.Anything, mock.MatchedBy(func(k string) bool { return strings.HasPrefix(k, "avatars/u1/") })).Return(nil)

	_, err := NewService(store, users, nil).Upload(context.Background(), upload("u1", "u1"))
	require.Error(t, err)
	store.AssertExpectations(t)
}

// --- Open / URL ---

func TestOpen(t *testing.T) {
	store, users := &mockObjectStore{}, &mockUserStore{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", AvatarKey: "avatars/u1/a.png", Enabled: true}, nil)
	users.On("Get", mock.Anything, "u2").Return(&domain.User{UserID: "u2", Enabled: true}, nil)
	store.On("Download", mock.Anything, "avatars/u1/a.png").Return(io.NopCloser(strings.NewReader("png")), "image/png", nil)
	svc := NewService(store, users, nil)

	rc, ct, err := svc.Open(context.Background(), "u1")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", ct)

	_, _, err = svc.Open(context.Background(), "u2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestURL(t *testing.T) {
	store, users := &mockObjectStore{}, &mockUserStore{}
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", AvatarKey: "avatars/u1/a.png", Enabled: true}, nil)
	store.On("PresignedURL", mock.Anything, "avatars/u1/a.png", urlTTL).Return("https://signed.example/a.png", nil)

	url, err := NewService(store, users, nil).URL(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/a.png", url)
}
