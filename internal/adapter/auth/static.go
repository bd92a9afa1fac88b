package auth

import (
	"context"
	"fmt"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"golang.org/x/crypto/bcrypt"
)

// Credential is one username/password entry of a fixed credential table.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StaticCredentials verifies against a fixed table. Passwords are held
// only as bcrypt hashes.
type StaticCredentials struct {
	hashes    map[string][]byte
	dummyHash []byte
}

func NewStaticCredentials(creds []Credential, cost int) (*StaticCredentials, error) {
	s := &StaticCredentials{hashes: make(map[string][]byte, len(creds))}

	for _, c := range creds {
		h, err := bcrypt.GenerateFromPassword([]byte(c.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", c.Username, err)
		}
		s.hashes[c.Username] = h
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash dummy password: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

func (s *StaticCredentials) Verify(_ context.Context, username, password string) error {
	hash, ok := s.hashes[username]
	if !ok {
		// same work for unknown users
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return domain.ErrInvalidCredentials
	}
	return nil
}

// StaticUserDirectory resolves users from a seeded, immutable list.
type StaticUserDirectory struct {
	users []domain.User
}

func NewStaticUserDirectory(users []domain.User) *StaticUserDirectory {
	return &StaticUserDirectory{users: append([]domain.User(nil), users...)}
}

func (d *StaticUserDirectory) FindByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range d.users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *StaticUserDirectory) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range d.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, domain.ErrNotFound
}
