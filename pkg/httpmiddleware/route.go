package httpmiddleware

import (
	"context"

	"github.com/go-chi/chi/v5"
)

// contextWithRoute pre-seeds the chi route context so middleware outside
// the router can read the matched pattern once the router returns.
func contextWithRoute(ctx context.Context, rctx *chi.Context) context.Context {
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}
