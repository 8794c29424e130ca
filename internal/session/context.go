package session

import (
	"context"

	"github.com/heartguard/heartguard-api/internal/contextx"
)

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextx.ClaimsKey, c)
}

// ClaimsFromContext returns the claims stored by the session middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextx.ClaimsKey).(*Claims)
	return c, ok && c != nil
}
