package ports

import (
	"context"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
)

// IOCRepository stores indicators. Implementations assign ID and
// DateReported in Create and return domain.ErrNotFound for unknown ids.
type IOCRepository interface {
	List(ctx context.Context) ([]domain.IOC, error)
	GetByID(ctx context.Context, id string) (*domain.IOC, error)
	Create(ctx context.Context, ioc domain.IOC) (*domain.IOC, error)
	Update(ctx context.Context, id string, patch domain.IOCPatch) (*domain.IOC, error)
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}

// CredentialVerifier checks a username/password pair. It returns
// domain.ErrInvalidCredentials without saying which half was wrong.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) error
}

// TokenStore is the caller-side storage a session token lives in
// (a cookie jar, a CLI config file, memory in tests).
type TokenStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// ObjectStore receives rendered export artefacts.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}
