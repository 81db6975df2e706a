// Package auth parses the shared-secret bearer scheme used by the arcade
// HTTP surface: "Authorization: Bearer <secret>:<userId>[:flag]...".
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"slices"
	"strings"
)

const flagAdmin = "admin"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrBadToken     = errors.New("malformed bearer token")
	ErrBadSecret    = errors.New("invalid secret")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Admin  bool
}

// Authenticator validates bearer tokens against a shared secret.
type Authenticator struct {
	secret []byte
}

func New(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("secret is required")
	}
	return &Authenticator{secret: []byte(secret)}, nil
}

// Authenticate extracts and validates the bearer token from a request.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return Identity{}, ErrMissingToken
	}
	return a.Parse(token)
}

// Parse validates a raw "<secret>:<userId>[:flag]..." token. The secret is
// compared in constant time.
func (a *Authenticator) Parse(token string) (Identity, error) {
	parts := strings.Split(token, ":")
	if len(parts) < 2 || parts[1] == "" {
		return Identity{}, ErrBadToken
	}
	if subtle.ConstantTimeCompare([]byte(parts[0]), a.secret) != 1 {
		return Identity{}, ErrBadSecret
	}
	return Identity{
		UserID: parts[1],
		Admin:  slices.Contains(parts[2:], flagAdmin),
	}, nil
}

// CanActFor reports whether the identity may perform an action on behalf of
// the target user.
func (id Identity) CanActFor(userID string) bool {
	return id.Admin || id.UserID == userID
}
