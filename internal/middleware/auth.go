package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/heartguard/heartguard-api/internal/httpx"
	"github.com/heartguard/heartguard-api/internal/session"
)

// SessionParser validates a session token.
type SessionParser interface {
	Parse(ctx context.Context, token string) (*session.Claims, error)
}

// sessionCookie extracts the session token from a raw Cookie header.
func sessionCookie(header string) string {
	if header == "" {
		return ""
	}
	r := http.Request{Header: http.Header{"Cookie": {header}}}
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// authenticate resolves the session cookie into claims. It returns the
// problem to send when the request cannot proceed as authenticated.
func authenticate(ctx context.Context, sessions SessionParser, logger *slog.Logger, cookieHeader string) (*session.Claims, *httpx.Problem) {
	token := sessionCookie(cookieHeader)
	if token == "" {
		return nil, httpx.UnauthorizedProblem(ctx, "Please sign in to continue.")
	}

	claims, err := sessions.Parse(ctx, token)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, session.ErrUnavailable):
		logger.Error("session revocation check failed", "error", err)
		return nil, httpx.ServiceUnavailableProblem(ctx)
	default:
		logger.Debug("rejected session", "error", err)
		return nil, httpx.UnauthorizedProblem(ctx, "Your session is invalid or has expired. Please sign in again.")
	}
}
