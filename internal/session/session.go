// Package session issues and validates the signed session cookie.
//
// A session is an HS256 JWT carrying the user id, role and a session family id
// (sid). Nothing is stored per session; only revocations are recorded through
// a Provider. Every validation failure collapses to ErrInvalidSession.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Kind is the lifetime class of a session. Refresh keeps the class.
type Kind string

const (
	KindDefault  Kind = "default"
	KindRemember Kind = "remember"
	KindAdmin    Kind = "admin"
)

var (
	ErrInvalidSession = errors.New("session: invalid or expired")
	ErrUnavailable    = errors.New("session: revocation store unavailable")
)

// Claims is the signed payload of a session token.
type Claims struct {
	Role string `json:"role"`
	SID  string `json:"sid"`
	Kind Kind   `json:"knd"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// IsAdmin is the only admin check used for access control.
func (c *Claims) IsAdmin() bool { return c.Role == RoleAdmin }

// Session is a freshly signed token with its claims.
type Session struct {
	Token     string
	Claims    *Claims
	ExpiresAt time.Time
}

// Config holds signing and cookie settings.
type Config struct {
	Secret       string
	Issuer       string
	DefaultTTL   time.Duration
	RememberTTL  time.Duration
	AdminTTL     time.Duration
	CookieDomain string
	CookieSecure bool
	// Timeout bounds each call to the revocation Provider.
	Timeout time.Duration
}

type Manager struct {
	cfg         Config
	secret      []byte
	revocations Provider
	now         func() time.Time
}

// NewManager returns a Manager. revocations may be nil, in which case logout
// only clears cookies and tokens stay valid until they expire.
func NewManager(cfg Config, revocations Provider) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session: secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "heartguard"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 4 * time.Hour
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	if cfg.AdminTTL <= 0 {
		cfg.AdminTTL = 8 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Manager{
		cfg:         cfg,
		secret:      []byte(cfg.Secret),
		revocations: revocations,
		now:         time.Now,
	}, nil
}

// TTL returns the lifetime of a session class.
func (m *Manager) TTL(kind Kind) time.Duration {
	switch kind {
	case KindRemember:
		return m.cfg.RememberTTL
	case KindAdmin:
		return m.cfg.AdminTTL
	default:
		return m.cfg.DefaultTTL
	}
}

// Issue starts a new session family for the user. KindAdmin forces the admin
// role.
func (m *Manager) Issue(userID, role string, kind Kind) (*Session, error) {
	return m.IssueSince(userID, role, kind, time.Time{})
}

// IssueSince is Issue with an issue time no earlier than since. Passing the
// cutoff returned by RevokeUser yields a session that survives it.
func (m *Manager) IssueSince(userID, role string, kind Kind, since time.Time) (*Session, error) {
	if userID == "" {
		return nil, errors.New("session: user id is required")
	}
	if kind == "" {
		kind = KindDefault
	}
	if kind == KindAdmin {
		role = RoleAdmin
	}
	if role == "" {
		role = RoleUser
	}
	iat := m.now().Truncate(time.Second)
	if since.After(iat) {
		iat = since.Truncate(time.Second)
	}
	return m.sign(&Claims{Role: role, SID: newID(), Kind: kind}, userID, iat, iat.Add(m.TTL(kind)))
}

// Parse validates a session token and returns its claims.
func (m *Manager) Parse(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.Subject == "" || claims.SID == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidSession
	}
	// A session issued past a RevokeUser cutoff is at most a second ahead.
	if claims.IssuedAt.After(m.now().Add(time.Second)) {
		return nil, ErrInvalidSession
	}

	if m.revocations != nil {
		ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
		revoked, err := m.revocations.IsRevoked(ctx, claims.SID, claims.Subject, claims.IssuedAt.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: revoked", ErrInvalidSession)
		}
	}
	return claims, nil
}

// Refresh re-issues a valid session in the same family and class. The new
// expiry is always strictly later than the presented one.
func (m *Manager) Refresh(ctx context.Context, token string) (*Session, error) {
	old, err := m.Parse(ctx, token)
	if err != nil {
		return nil, err
	}

	iat := m.now().Truncate(time.Second)
	if old.IssuedAt.After(iat) {
		iat = old.IssuedAt.Time
	}
	exp := iat.Add(m.TTL(old.Kind))
	if prev := old.ExpiresAt.Time; !exp.After(prev) {
		exp = prev.Add(time.Second)
	}
	return m.sign(&Claims{Role: old.Role, SID: old.SID, Kind: old.Kind}, old.Subject, iat, exp)
}

// Revoke ends the session family of claims.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.revocations == nil || claims == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	if err := m.revocations.RevokeSession(ctx, claims.SID, m.TTL(claims.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeUser invalidates every session of the user issued up to now,
// including earlier in the current second. It returns the cutoff: sessions
// issued at or after it stay valid, see IssueSince.
func (m *Manager) RevokeUser(ctx context.Context, userID string) (time.Time, error) {
	cutoff := m.now().Truncate(time.Second).Add(time.Second)
	if m.revocations == nil {
		return cutoff, nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	if err := m.revocations.RevokeUser(ctx, userID, cutoff, m.maxTTL()); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return cutoff, nil
}

func (m *Manager) sign(c *Claims, userID string, now, exp time.Time) (*Session, error) {
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        newID(),
		Issuer:    m.cfg.Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{Token: signed, Claims: c, ExpiresAt: exp}, nil
}

func (m *Manager) maxTTL() time.Duration {
	return max(m.cfg.DefaultTTL, m.cfg.RememberTTL, m.cfg.AdminTTL)
}

func newID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
