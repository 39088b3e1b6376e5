// Package auth inspects access tokens before they are spent on a dial.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoExpiry is returned when the token carries no exp claim.
	ErrNoExpiry = errors.New("token has no expiry claim")
	// ErrMalformedToken is returned when the token is not a parseable JWT.
	ErrMalformedToken = errors.New("malformed token")
)

// Expired reports whether the token's exp claim is in the past. The signature
// is deliberately not verified: the server is the authority on validity, this
// is only a preflight so an obviously stale token does not burn reconnect
// attempts on handshakes that can only be rejected.
func Expired(token string, now time.Time) (bool, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false, ErrMalformedToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, ErrNoExpiry
	}
	return exp.Before(now), nil
}
