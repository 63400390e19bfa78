// Package identity resolves the current user's stable identifier from the
// locally held credential token.
package identity

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the currently stored bearer token, or the empty string
// when the user is not logged in.
type TokenSource func() string

// UserID extracts the user identifier (the JWT subject claim) from a bearer
// token. The token is parsed without signature verification; the server is
// the only party that validates credentials, the client merely reads its own
// name out of them. Returns the empty string for an absent or malformed
// token.
func UserID(token string) string {
	if token == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// Resolver binds a token source so callers can re-resolve after a login or
// logout without re-wiring.
type Resolver struct {
	source TokenSource
}

// NewResolver creates a Resolver over the given token source.
func NewResolver(source TokenSource) *Resolver {
	return &Resolver{source: source}
}

// UserID resolves the current user id, or "" when logged out.
func (r *Resolver) UserID() string {
	if r == nil || r.source == nil {
		return ""
	}
	return UserID(r.source())
}
