// Package session resolves session cookies to authenticated sessions.
//
// Two checks are exposed through Oracle: HasSessionCookie is a cheap
// presence test used by the edge gate, ResolveSession is the authoritative
// validation (signature, record lookup, expiry) used at render time. A
// present cookie says nothing about validity.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrMissingCookie means no session cookie was sent
	ErrMissingCookie = errors.New("missing session cookie")
	// ErrInvalidSession means the cookie or record failed validation
	ErrInvalidSession = errors.New("invalid session")
	// ErrOracleUnavailable means the backing store could not be queried
	ErrOracleUnavailable = errors.New("session store unavailable")
)

// SecureCookiePrefix is prepended to the cookie name when cookies are
// issued with the Secure attribute.
const SecureCookiePrefix = "__Secure-"

// Session is a resolved, valid session
type Session struct {
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email,omitempty"`
	IsAnonymous bool      `json:"is_anonymous"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Oracle is consumed by the edge gate and the render-time gates
type Oracle interface {
	// ResolveSession validates the request's session cookie. It returns
	// (nil, nil) when there is no valid session and an error wrapping
	// ErrOracleUnavailable when the store cannot be reached.
	ResolveSession(ctx context.Context, header http.Header) (*Session, error)

	// HasSessionCookie reports whether a non-empty session cookie is present.
	// It does not validate the cookie.
	HasSessionCookie(header http.Header) bool
}

// Lookuper finds the session record for a token. It returns ErrInvalidSession
// when no record exists. Expiry is checked by the caller.
type Lookuper interface {
	Lookup(ctx context.Context, token string) (*Session, error)
}

// Invalidator drops any cached copy of a session
type Invalidator interface {
	Invalidate(ctx context.Context, token string) error
}

// CookieValues returns the non-empty values of the named session cookie,
// the __Secure- variant first. A browser can hold both after the Secure
// setting changes, so callers try each in turn. Unparseable cookies are
// skipped.
func CookieValues(header http.Header, name string) []string {
	req := http.Request{Header: header}

	var values []string
	for _, candidate := range []string{SecureCookiePrefix + name, name} {
		cookie, err := req.Cookie(candidate)
		if err != nil || cookie.Value == "" {
			continue
		}
		values = append(values, cookie.Value)
	}
	return values
}

// CookieValue returns the first value from CookieValues
func CookieValue(header http.Header, name string) (string, error) {
	values := CookieValues(header, name)
	if len(values) == 0 {
		return "", ErrMissingCookie
	}
	return values[0], nil
}
