package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the access token's payload the client cares about.
type Claims struct {
	UserID  string
	Email   string
	Expires time.Time
}

// Expired reports whether the token's expiry has passed. Tokens without an
// exp claim never report expired.
func (c Claims) Expired() bool {
	return !c.Expires.IsZero() && time.Now().After(c.Expires)
}

// ParseClaims decodes the stored access token without verifying its
// signature. The token is opaque to the client for authorization purposes;
// this is only used to read identity and expiry locally, e.g. to warn before
// a doomed connection attempt.
func ParseClaims(token string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claims{}, fmt.Errorf("auth: parse access token: %w", err)
	}

	out := Claims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expires = exp.Time
	}
	return out, nil
}
