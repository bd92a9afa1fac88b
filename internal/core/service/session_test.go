package service

import (
	"context"
	"testing"
	"time"

	"github.com/hive-corporation/ioc-console/internal/adapter/auth"
	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newSessionProvider(t *testing.T, ttl time.Duration) *SessionProvider {
	t.Helper()

	creds, err := auth.NewStaticCredentials([]auth.Credential{
		{Username: "admin", Password: "admin123"},
		{Username: "analyst", Password: "analyst123"},
		{Username: "orphan", Password: "orphan123"},
	}, bcrypt.MinCost)
	require.NoError(t, err)

	users := auth.NewStaticUserDirectory([]domain.User{
		{ID: "1", Username: "admin", Email: "admin@fortinet.com", Role: domain.RoleAdmin},
		{ID: "2", Username: "analyst", Email: "analyst@fortinet.com", Role: domain.RoleUser},
	})

	codec := auth.NewJWTCodec([]byte("0123456789abcdef0123456789abcdef"), ttl)
	return NewSessionProvider(creds, users, codec, logging.Discard())
}

func TestSessionProvider_LoginSuccess(t *testing.T) {
	p := newSessionProvider(t, time.Hour)
	store := auth.NewMemoryTokenStore()
	ctx := context.Background()

	user, err := p.Login(ctx, store, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "1", user.ID)
	assert.Equal(t, domain.RoleAdmin, user.Role)

	token, ok := store.Get(TokenKey)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	current := p.CurrentUser(ctx, store)
	require.NotNil(t, current)
	assert.Equal(t, "admin", current.Username)
	assert.True(t, p.IsAuthenticated(ctx, store))
}

func TestSessionProvider_LoginFailureLeavesStoreUntouched(t *testing.T) {
	p := newSessionProvider(t, time.Hour)
	ctx := context.Background()

	cases := []struct{ username, password string }{
		{"admin", "wrong"},
		{"nobody", "admin123"},
		{"", ""},
		{"orphan", "orphan123"}, // credential without a user record
	}
	for _, c := range cases {
		store := auth.NewMemoryTokenStore()
		user, err := p.Login(ctx, store, c.username, c.password)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials, c.username)

		_, ok := store.Get(TokenKey)
		assert.False(t, ok, c.username)
		assert.False(t, p.IsAuthenticated(ctx, store))
	}
}

func TestSessionProvider_FailedLoginKeepsExistingSession(t *testing.T) {
	p := newSessionProvider(t, time.Hour)
	store := auth.NewMemoryTokenStore()
	ctx := context.Background()

	_, err := p.Login(ctx, store, "analyst", "analyst123")
	require.NoError(t, err)

	_, err = p.Login(ctx, store, "admin", "bad")
	require.Error(t, err)

	current := p.CurrentUser(ctx, store)
	require.NotNil(t, current)
	assert.Equal(t, "analyst", current.Username)
}

func TestSessionProvider_Logout(t *testing.T) {
	p := newSessionProvider(t, time.Hour)
	store := auth.NewMemoryTokenStore()
	ctx := context.Background()

	p.Logout(store) // no session yet

	_, err := p.Login(ctx, store, "admin", "admin123")
	require.NoError(t, err)

	p.Logout(store)
	p.Logout(store)
	assert.Nil(t, p.CurrentUser(ctx, store))
}

func TestSessionProvider_SilentDowngrade(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed", func(t *testing.T) {
		p := newSessionProvider(t, time.Hour)
		store := auth.NewMemoryTokenStore()
		store.Set(TokenKey, "garbage")
		assert.Nil(t, p.CurrentUser(ctx, store))
	})

	t.Run("tampered", func(t *testing.T) {
		p := newSessionProvider(t, time.Hour)
		store := auth.NewMemoryTokenStore()
		_, err := p.Login(ctx, store, "admin", "admin123")
		require.NoError(t, err)

		token, _ := store.Get(TokenKey)
		store.Set(TokenKey, token+"x")
		assert.Nil(t, p.CurrentUser(ctx, store))
	})

	t.Run("expired", func(t *testing.T) {
		p := newSessionProvider(t, -time.Minute)
		store := auth.NewMemoryTokenStore()
		_, err := p.Login(ctx, store, "admin", "admin123")
		require.NoError(t, err)
		assert.Nil(t, p.CurrentUser(ctx, store))
	})
}

func TestSessionProvider_ResolveToken(t *testing.T) {
	p := newSessionProvider(t, time.Hour)
	store := auth.NewMemoryTokenStore()
	ctx := context.Background()

	_, err := p.Login(ctx, store, "analyst", "analyst123")
	require.NoError(t, err)
	token, _ := store.Get(TokenKey)

	user := p.ResolveToken(ctx, token)
	require.NotNil(t, user)
	assert.Equal(t, "2", user.ID)
	assert.Nil(t, p.ResolveToken(ctx, ""))
}
