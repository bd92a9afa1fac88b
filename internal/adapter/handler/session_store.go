package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/ports"
)

// cookieStore keeps the session token in a browser cookie. A bearer
// token in the Authorization header is accepted on read for API clients.
type cookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	ttl    time.Duration
	secure bool

	// issued is the last token written, so the login response can echo it.
	issued string
}

var _ ports.TokenStore = (*cookieStore)(nil)

func newCookieStore(w http.ResponseWriter, r *http.Request, ttl time.Duration) *cookieStore {
	return &cookieStore{w: w, r: r, ttl: ttl, secure: r.TLS != nil}
}

func (s *cookieStore) Get(key string) (string, bool) {
	if auth := s.r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && token != "" {
			return token, true
		}
	}
	c, err := s.r.Cookie(key)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *cookieStore) Set(key, value string) {
	s.issued = value
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *cookieStore) Remove(key string) {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
