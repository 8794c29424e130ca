package middleware

import (
	"encoding/json"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/heartguard/heartguard-api/internal/contextx"
	apphttpx "github.com/heartguard/heartguard-api/internal/httpx"
)

// RequireSession is a router-agnostic Huma middleware that validates the
// session cookie and injects the claims for downstream handlers. On failure
// it writes an RFC 7807 problem (401, or 503 when revocations cannot be
// checked).
func RequireSession(sessions SessionParser, logger *slog.Logger) huma.Middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		claims, p := authenticate(ctx.Context(), sessions, logger, ctx.Header("Cookie"))
		if p != nil {
			writeProblem(ctx, p)
			return
		}
		next(huma.WithValue(ctx, contextx.ClaimsKey, claims))
	}
}

// RequireAdmin is RequireSession plus a 403 for sessions without the admin
// role claim. The is_admin cookie is never consulted.
func RequireAdmin(sessions SessionParser, logger *slog.Logger) huma.Middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		claims, p := authenticate(ctx.Context(), sessions, logger, ctx.Header("Cookie"))
		if p != nil {
			writeProblem(ctx, p)
			return
		}
		if !claims.IsAdmin() {
			logger.Warn("non-admin session on admin route", "user_id", claims.UserID(), "path", ctx.URL().Path)
			writeProblem(ctx, apphttpx.ForbiddenProblem(ctx.Context(), "Administrator access is required."))
			return
		}
		next(huma.WithValue(ctx, contextx.ClaimsKey, claims))
	}
}

// OptionalSession injects claims when the request carries a valid session and
// otherwise lets the request through anonymously.
func OptionalSession(sessions SessionParser, logger *slog.Logger) huma.Middleware {
	return func(ctx huma.Context, next func(huma.Context)) {
		claims, p := authenticate(ctx.Context(), sessions, logger, ctx.Header("Cookie"))
		if p != nil {
			next(ctx)
			return
		}
		next(huma.WithValue(ctx, contextx.ClaimsKey, claims))
	}
}

func writeProblem(ctx huma.Context, p *apphttpx.Problem) {
	ctx.SetHeader("Content-Type", "application/problem+json")
	ctx.SetStatus(p.GetStatus())
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(p)
}
