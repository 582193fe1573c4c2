package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeAdmin lets a service key act as an admin.
const ScopeAdmin = "orders:admin"

// ErrKeyNotFound is returned by KeyRepository when no active key matches.
var ErrKeyNotFound = errors.New("api key not found")

// APIKey is a stored service credential. Only the HMAC of the key is kept.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// KeyRepository looks up active keys by hash.
type KeyRepository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}

// APIKeys verifies service keys used by back-office integrations such as a
// fulfilment system moving orders through their lifecycle.
type APIKeys struct {
	keys   KeyRepository
	pepper []byte
}

// NewAPIKeys creates an APIKeys verifier.
func NewAPIKeys(keys KeyRepository, pepper []byte) *APIKeys {
	return &APIKeys{keys: keys, pepper: pepper}
}

// HashKey returns the hex HMAC-SHA256 of key under pepper, as stored.
func HashKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify resolves key into a service identity.
func (a *APIKeys) Verify(ctx context.Context, key string) (Identity, error) {
	if key == "" {
		return Identity{}, ErrUnauthorized
	}
	hash := HashKey(key, a.pepper)

	info, err := a.keys.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Identity{}, ErrUnauthorized
		}
		return Identity{}, errors.Wrap(err, "find api key")
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
		return Identity{}, ErrUnauthorized
	}

	id := Identity{UserID: "service:" + info.Name}
	if slices.Contains(info.Scopes, ScopeAdmin) {
		id.Role = RoleAdmin
	}
	return id, nil
}
