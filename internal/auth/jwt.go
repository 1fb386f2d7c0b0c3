package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrSecretNotInitialized = errors.New("session secret not initialized")

// CookieClaims are the claims carried by the session cookie. ID (jti) holds
// the opaque session token.
type CookieClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies session cookie values with HS256
type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

// NewTokenSigner creates a signer for the given secret
func NewTokenSigner(secret string) (*TokenSigner, error) {
	if secret == "" {
		return nil, ErrSecretNotInitialized
	}
	return &TokenSigner{secret: []byte(secret), now: time.Now}, nil
}

// Sign wraps a session token into a signed cookie value that expires with the session
func (s *TokenSigner) Sign(sessionToken, userID string, expiresAt time.Time) (string, error) {
	now := s.now()
	claims := CookieClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionToken,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry of a cookie value and returns its claims
func (s *TokenSigner) Verify(value string) (*CookieClaims, error) {
	token, err := jwt.ParseWithClaims(value, &CookieClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*CookieClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
