// Package auth resolves bearer tokens into caller identities.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthorized is returned for missing, malformed, or expired tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when an authenticated caller lacks permission.
	ErrForbidden = errors.New("forbidden")
)

// RoleAdmin grants access to every order and to admin operations.
const RoleAdmin = "admin"

// Identity is the resolved caller of an authenticated request. Core
// operations receive it as an explicit argument.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
