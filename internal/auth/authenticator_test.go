package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"projectlink/backend/internal/models"
	"projectlink/backend/internal/store"
	"projectlink/backend/pkg/config"
	pkgjwt "projectlink/backend/pkg/jwt"
	"projectlink/backend/pkg/logger"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users map[uint]*models.User
}

func (f *fakeDirectory) ResolveUser(ctx context.Context, userID uint) (*models.User, error) {
	if user, ok := f.users[userID]; ok {
		return user, nil
	}
	return nil, store.ErrNotFound
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func newTestAuthenticator() *Authenticator {
	directory := &fakeDirectory{users: map[uint]*models.User{
		42: {ID: 42, Email: "user@example.com"},
	}}
	return NewAuthenticator(directory, testLogger())
}

func TestResolveValidCredential(t *testing.T) {
	a := newTestAuthenticator()

	token, err := pkgjwt.GenerateToken(42, "user@example.com")
	require.NoError(t, err)

	identity := a.Resolve(context.Background(), token)
	assert.True(t, identity.Authenticated)
	assert.Equal(t, uint(42), identity.UserID)
	assert.Equal(t, "user@example.com", identity.Email)
}

func TestResolveEmptyCredential(t *testing.T) {
	a := newTestAuthenticator()
	assert.Equal(t, Anonymous, a.Resolve(context.Background(), ""))
}

func TestResolveMalformedCredential(t *testing.T) {
	a := newTestAuthenticator()
	assert.Equal(t, Anonymous, a.Resolve(context.Background(), "not-a-token"))
}

func TestResolveExpiredCredential(t *testing.T) {
	a := newTestAuthenticator()

	claims := &pkgjwt.Claims{
		UserID: 42,
		Email:  "user@example.com",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.Get().JWT.Secret))
	require.NoError(t, err)

	assert.Equal(t, Anonymous, a.Resolve(context.Background(), signed))
}

func TestResolveUnknownSubject(t *testing.T) {
	a := newTestAuthenticator()

	token, err := pkgjwt.GenerateToken(999, "ghost@example.com")
	require.NoError(t, err)

	assert.Equal(t, Anonymous, a.Resolve(context.Background(), token))
}

func TestResolveWrongSignature(t *testing.T) {
	a := newTestAuthenticator()

	claims := &pkgjwt.Claims{
		UserID: 42,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	assert.Equal(t, Anonymous, a.Resolve(context.Background(), signed))
}
