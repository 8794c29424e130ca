package session

import (
	"net/http"
	"time"
)

const (
	CookieName      = "session"
	AdminCookieName = "is_admin"
)

// Cookies returns the session cookie and the advisory is_admin cookie. The
// latter mirrors the signed role claim for client-side routing and is never
// read by the server.
func (m *Manager) Cookies(s *Session) []http.Cookie {
	admin := "0"
	if s.Claims.IsAdmin() {
		admin = "1"
	}
	return []http.Cookie{
		{
			Name:     CookieName,
			Value:    s.Token,
			Path:     "/",
			Domain:   m.cfg.CookieDomain,
			Expires:  s.ExpiresAt,
			HttpOnly: true,
			Secure:   m.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		},
		{
			Name:     AdminCookieName,
			Value:    admin,
			Path:     "/",
			Domain:   m.cfg.CookieDomain,
			Expires:  s.ExpiresAt,
			Secure:   m.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

// ClearCookies expires both cookies.
func (m *Manager) ClearCookies() []http.Cookie {
	return []http.Cookie{
		{
			Name:     CookieName,
			Path:     "/",
			Domain:   m.cfg.CookieDomain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		},
		{
			Name:     AdminCookieName,
			Path:     "/",
			Domain:   m.cfg.CookieDomain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   m.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		},
	}
}
