package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchkit-dev/launchkit/internal/auth"
)

// CookieOracle resolves signed session cookies against a Lookuper
type CookieOracle struct {
	cookieName string
	signer     *auth.TokenSigner
	lookup     Lookuper
	logger     zerolog.Logger
	now        func() time.Time
}

// NewCookieOracle creates the production Oracle
func NewCookieOracle(cookieName string, signer *auth.TokenSigner, lookup Lookuper, logger zerolog.Logger) *CookieOracle {
	return &CookieOracle{
		cookieName: cookieName,
		signer:     signer,
		lookup:     lookup,
		logger:     logger,
		now:        time.Now,
	}
}

// HasSessionCookie implements Oracle
func (o *CookieOracle) HasSessionCookie(header http.Header) bool {
	return len(CookieValues(header, o.cookieName)) > 0
}

// ResolveSession implements Oracle. When both the plain and the __Secure-
// cookie are present, the first one that resolves wins.
func (o *CookieOracle) ResolveSession(ctx context.Context, header http.Header) (*Session, error) {
	for _, value := range CookieValues(header, o.cookieName) {
		s, err := o.resolve(ctx, value)
		if err != nil || s != nil {
			return s, err
		}
	}
	return nil, nil
}

func (o *CookieOracle) resolve(ctx context.Context, value string) (*Session, error) {
	claims, err := o.signer.Verify(value)
	if err != nil {
		o.logger.Debug().Err(err).Msg("Rejected session cookie")
		return nil, nil
	}

	s, err := o.lookup.Lookup(ctx, claims.ID)
	if errors.Is(err, ErrInvalidSession) {
		return nil, nil
	}
	if err != nil {
		if !errors.Is(err, ErrOracleUnavailable) {
			err = errors.Join(ErrOracleUnavailable, err)
		}
		return nil, err
	}

	if s.UserID != claims.UserID || s.Expired(o.now()) {
		return nil, nil
	}

	return s, nil
}
