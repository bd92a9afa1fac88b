package ports

import "time"

// SessionClaims is what a session token binds.
type SessionClaims struct {
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// TokenCodec mints and verifies opaque session tokens.
// Decode fails for malformed, tampered or expired tokens.
type TokenCodec interface {
	Encode(userID, username string) (string, error)
	Decode(token string) (*SessionClaims, error)
}
