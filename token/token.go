package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a bearer token cannot be decoded as a JWT
// carrying an expiration claim.
var ErrMalformedToken = errors.New("malformed token")

// Token is a bearer credential together with the expiry read from its claims.
//
// Token is a value type. A refresh produces a new Token; an existing one is never
// modified. ExpiresAt is zero when the expiry is unknown.
type Token struct {
	Raw       string
	ExpiresAt time.Time
}

// Parse builds a Token from raw and reads its expiry.
//
// A malformed token is not fatal: Parse returns the Token with a zero ExpiresAt
// together with an error wrapping [ErrMalformedToken]. Callers keep the token and
// rely on 401 responses to detect expiry.
func Parse(raw string) (Token, error) {
	t := Token{Raw: raw}
	exp, err := ExpiryOf(raw)
	if err != nil {
		return t, err
	}
	t.ExpiresAt = exp
	return t, nil
}

// ExpiryOf returns the exp claim of raw. The signature is not verified.
func ExpiryOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.IsZero() {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}

	return claims.ExpiresAt.Time, nil
}

// IsZero reports whether t holds no credential.
func (t Token) IsZero() bool {
	return t.Raw == ""
}

// ExpiryKnown reports whether an expiry could be read from the token claims.
func (t Token) ExpiryKnown() bool {
	return !t.ExpiresAt.IsZero()
}

// ExpiresWithin reports whether the token is known to expire before now+d.
// Tokens with an unknown expiry never report true.
func (t Token) ExpiresWithin(now time.Time, d time.Duration) bool {
	if !t.ExpiryKnown() {
		return false
	}
	return !now.Add(d).Before(t.ExpiresAt)
}
