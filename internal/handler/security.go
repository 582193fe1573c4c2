package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

// HeaderAPIKey carries service credentials.
const HeaderAPIKey = "X-API-Key"

type identityKey struct{}

// Security authenticates API requests. Shoppers send a bearer JWT; back-office
// integrations send an API key.
type Security struct {
	tokens auth.Verifier
	keys   auth.Verifier
}

// NewSecurity creates a Security. keys may be nil to disable API keys.
func NewSecurity(tokens, keys auth.Verifier) *Security {
	return &Security{tokens: tokens, keys: keys}
}

// Authenticate resolves the caller and stores the identity in the request
// context. Requests without valid credentials get 401.
func (s *Security) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := s.identify(r)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				zctx.From(ctx).Error("Authentication failed", zap.Error(err))
				writeError(ctx, w, http.StatusInternalServerError, "internal error")
				return
			}
			zctx.From(ctx).Debug("Rejected credentials", zap.Error(err))
			writeError(ctx, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx = zctx.With(ctx, zap.String("user_id", id.UserID))
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, identityKey{}, id)))
	})
}

func (s *Security) identify(r *http.Request) (auth.Identity, error) {
	if key := r.Header.Get(HeaderAPIKey); key != "" && s.keys != nil {
		return s.keys.Verify(r.Context(), key)
	}

	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return auth.Identity{}, errors.Wrap(auth.ErrUnauthorized, "missing bearer token")
	}
	return s.tokens.Verify(r.Context(), strings.TrimSpace(token))
}

// IdentityFrom returns the caller stored by Authenticate.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

func mustIdentity(ctx context.Context) auth.Identity {
	id, ok := IdentityFrom(ctx)
	if !ok {
		panic("handler: route is not behind Authenticate")
	}
	return id
}
