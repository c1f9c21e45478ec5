package context

import (
	"context"

	"github.com/mkrupp/library/internal/domain"
)

// IdentityFromContext extracts the verified caller identity from the context.
// Returns false for unauthenticated requests.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(domain.Identity)

	return identity, ok
}

// WithIdentity returns a copy of ctx carrying the verified caller identity.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}
