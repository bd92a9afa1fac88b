package service

import (
	"context"
	"errors"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/core/ports"
	"github.com/hive-corporation/ioc-console/internal/logging"
	"github.com/hive-corporation/ioc-console/internal/metrics"
)

// TokenKey is the store key the session token is persisted under.
const TokenKey = "fortigate_ioc_token"

// SessionProvider authenticates users and resolves session tokens back
// to users. It keeps no state of its own; the token lives in the
// caller's ports.TokenStore.
type SessionProvider struct {
	creds  ports.CredentialVerifier
	users  ports.UserDirectory
	tokens ports.TokenCodec
	log    logging.Logger
}

func NewSessionProvider(creds ports.CredentialVerifier, users ports.UserDirectory, tokens ports.TokenCodec, log logging.Logger) *SessionProvider {
	return &SessionProvider{
		creds:  creds,
		users:  users,
		tokens: tokens,
		log:    log.With("component", "session"),
	}
}

// Login verifies the pair, persists a fresh token into store and returns
// the user. Any failure yields domain.ErrInvalidCredentials and leaves
// store untouched.
func (p *SessionProvider) Login(ctx context.Context, store ports.TokenStore, username, password string) (*domain.User, error) {
	if err := p.creds.Verify(ctx, username, password); err != nil {
		metrics.RecordLogin("failure")
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			p.log.Error(ctx, "credential verification failed", "error", err)
		}
		return nil, domain.ErrInvalidCredentials
	}

	user, err := p.users.FindByUsername(ctx, username)
	if err != nil {
		metrics.RecordLogin("failure")
		p.log.Warn(ctx, "verified credentials without user record", "username", username)
		return nil, domain.ErrInvalidCredentials
	}

	token, err := p.tokens.Encode(user.ID, user.Username)
	if err != nil {
		metrics.RecordLogin("failure")
		return nil, err
	}

	store.Set(TokenKey, token)
	metrics.RecordLogin("success")
	p.log.Info(ctx, "user logged in", "user_id", user.ID, "username", user.Username)

	return user, nil
}

// Logout discards the persisted token. Calling it without a session is a no-op.
func (p *SessionProvider) Logout(store ports.TokenStore) {
	store.Remove(TokenKey)
}

// CurrentUser returns the user bound to the persisted token, or nil when
// there is no token or it is malformed, tampered with or expired.
func (p *SessionProvider) CurrentUser(ctx context.Context, store ports.TokenStore) *domain.User {
	token, ok := store.Get(TokenKey)
	if !ok || token == "" {
		return nil
	}
	return p.ResolveToken(ctx, token)
}

func (p *SessionProvider) IsAuthenticated(ctx context.Context, store ports.TokenStore) bool {
	return p.CurrentUser(ctx, store) != nil
}

// ResolveToken maps a raw token to its user, or nil.
func (p *SessionProvider) ResolveToken(ctx context.Context, token string) *domain.User {
	claims, err := p.tokens.Decode(token)
	if err != nil {
		p.log.Debug(ctx, "rejected session token", "error", err)
		return nil
	}

	user, err := p.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil
	}
	return user
}
