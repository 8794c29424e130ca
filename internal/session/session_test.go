package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *MemoryProvider, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	prov := NewMemoryProvider()
	prov.now = clk.now
	m, err := NewManager(Config{Secret: "test-secret", CookieSecure: true}, prov)
	require.NoError(t, err)
	m.now = clk.now
	return m, prov, clk
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager(Config{}, nil)
	assert.Error(t, err)
}

func TestIssue_Lifetimes(t *testing.T) {
	m, _, clk := newTestManager(t)

	tests := []struct {
		kind Kind
		role string
		ttl  time.Duration
		want string
	}{
		{KindDefault, RoleUser, 4 * time.Hour, RoleUser},
		{KindRemember, RoleUser, 30 * 24 * time.Hour, RoleUser},
		{KindAdmin, RoleUser, 8 * time.Hour, RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			s, err := m.Issue("u-1", tt.role, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, clk.t.Add(tt.ttl), s.ExpiresAt)
			assert.Equal(t, tt.want, s.Claims.Role)
			assert.NotEmpty(t, s.Claims.SID)

			claims, err := m.Parse(context.Background(), s.Token)
			require.NoError(t, err)
			assert.Equal(t, "u-1", claims.UserID())
			assert.Equal(t, tt.kind, claims.Kind)
			assert.Equal(t, tt.want == RoleAdmin, claims.IsAdmin())
		})
	}
}

func TestParse_Expired(t *testing.T) {
	m, _, clk := newTestManager(t)
	s, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)

	clk.advance(4 * time.Hour)
	_, err = m.Parse(context.Background(), s.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestParse_RejectsTampered(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)

	_, err = m.Parse(context.Background(), s.Token+"x")
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = m.Parse(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = m.Parse(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestParse_RejectsForgedAdminRole(t *testing.T) {
	m, _, clk := newTestManager(t)

	forged := &Claims{
		Role: RoleAdmin,
		SID:  "sid",
		Kind: KindAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "heartguard",
			Subject:   "u-1",
			IssuedAt:  jwt.NewNumericDate(clk.t),
			ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestParse_RejectsNoneAlgorithm(t *testing.T) {
	m, _, clk := newTestManager(t)

	c := &Claims{
		Role: RoleAdmin,
		SID:  "sid",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "heartguard",
			Subject:   "u-1",
			IssuedAt:  jwt.NewNumericDate(clk.t),
			ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRefresh_ExpiryStrictlyLater(t *testing.T) {
	m, _, clk := newTestManager(t)
	s, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)

	// Same second: the new expiry must still move forward.
	same, err := m.Refresh(context.Background(), s.Token)
	require.NoError(t, err)
	assert.True(t, same.ExpiresAt.After(s.ExpiresAt))
	assert.Equal(t, s.Claims.SID, same.Claims.SID)

	clk.advance(25 * time.Minute)
	later, err := m.Refresh(context.Background(), same.Token)
	require.NoError(t, err)
	assert.True(t, later.ExpiresAt.After(same.ExpiresAt))
	assert.Equal(t, clk.t.Add(4*time.Hour), later.ExpiresAt)
	assert.Equal(t, KindDefault, later.Claims.Kind)
}

func TestRefresh_KeepsAdminClass(t *testing.T) {
	m, _, clk := newTestManager(t)
	s, err := m.Issue("u-1", RoleAdmin, KindAdmin)
	require.NoError(t, err)

	clk.advance(time.Hour)
	r, err := m.Refresh(context.Background(), s.Token)
	require.NoError(t, err)
	assert.True(t, r.Claims.IsAdmin())
	assert.Equal(t, clk.t.Add(8*time.Hour), r.ExpiresAt)
}

func TestRefresh_InvalidSession(t *testing.T) {
	m, _, clk := newTestManager(t)
	s, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)

	clk.advance(5 * time.Hour)
	_, err = m.Refresh(context.Background(), s.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRevoke_EndsSessionFamily(t *testing.T) {
	m, _, clk := newTestManager(t)
	s, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)
	clk.advance(time.Minute)
	refreshed, err := m.Refresh(context.Background(), s.Token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), s.Claims))

	_, err = m.Parse(context.Background(), s.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = m.Parse(context.Background(), refreshed.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	other, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)
	_, err = m.Parse(context.Background(), other.Token)
	assert.NoError(t, err)
}

func TestRevokeUser_InvalidatesEarlierSessions(t *testing.T) {
	m, _, clk := newTestManager(t)
	a, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)
	b, err := m.Issue("u-1", RoleUser, KindRemember)
	require.NoError(t, err)
	other, err := m.Issue("u-2", RoleUser, KindDefault)
	require.NoError(t, err)

	clk.advance(time.Second)
	cutoff, err := m.RevokeUser(context.Background(), "u-1")
	require.NoError(t, err)

	for _, tok := range []string{a.Token, b.Token} {
		_, err := m.Parse(context.Background(), tok)
		assert.ErrorIs(t, err, ErrInvalidSession)
	}
	_, err = m.Parse(context.Background(), other.Token)
	assert.NoError(t, err)

	fresh, err := m.IssueSince("u-1", RoleUser, KindDefault, cutoff)
	require.NoError(t, err)
	_, err = m.Parse(context.Background(), fresh.Token)
	assert.NoError(t, err)
}

func TestRevokeUser_SameSecond(t *testing.T) {
	m, _, clk := newTestManager(t)
	clk.advance(100 * time.Millisecond)
	early, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)

	clk.advance(700 * time.Millisecond)
	cutoff, err := m.RevokeUser(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, cutoff.After(clk.t))

	_, err = m.Parse(context.Background(), early.Token)
	assert.ErrorIs(t, err, ErrInvalidSession, "issued earlier in the same second")

	sameSecond, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)
	_, err = m.Parse(context.Background(), sameSecond.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	fresh, err := m.IssueSince("u-1", RoleUser, KindRemember, cutoff)
	require.NoError(t, err)
	assert.True(t, cutoff.Equal(fresh.Claims.IssuedAt.Time))
	_, err = m.Parse(context.Background(), fresh.Token)
	assert.NoError(t, err)

	refreshed, err := m.Refresh(context.Background(), fresh.Token)
	require.NoError(t, err)
	_, err = m.Parse(context.Background(), refreshed.Token)
	assert.NoError(t, err, "refresh keeps the issue time past the cutoff")
}

func TestParse_RejectsFarFutureIssuedAt(t *testing.T) {
	m, _, clk := newTestManager(t)
	claims := &Claims{Role: RoleUser, SID: "sid", Kind: KindDefault}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    "heartguard",
		Subject:   "u-1",
		IssuedAt:  jwt.NewNumericDate(clk.t.Add(time.Hour)),
		ExpiresAt: jwt.NewNumericDate(clk.t.Add(2 * time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.Parse(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

type failingProvider struct{}

func (failingProvider) RevokeSession(context.Context, string, time.Duration) error {
	return errors.New("down")
}

func (failingProvider) RevokeUser(context.Context, string, time.Time, time.Duration) error {
	return errors.New("down")
}

func (failingProvider) IsRevoked(context.Context, string, string, time.Time) (bool, error) {
	return false, errors.New("down")
}

func TestParse_ProviderUnavailable(t *testing.T) {
	m, err := NewManager(Config{Secret: "s"}, failingProvider{})
	require.NoError(t, err)
	s, err := m.Issue("u-1", RoleUser, KindDefault)
	require.NoError(t, err)

	_, err = m.Parse(context.Background(), s.Token)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidSession)

	assert.ErrorIs(t, m.Revoke(context.Background(), s.Claims), ErrUnavailable)
}

func TestCookies(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, err := m.Issue("u-1", RoleAdmin, KindAdmin)
	require.NoError(t, err)

	cookies := m.Cookies(s)
	require.Len(t, cookies, 2)

	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, s.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, s.ExpiresAt, cookies[0].Expires)

	assert.Equal(t, AdminCookieName, cookies[1].Name)
	assert.Equal(t, "1", cookies[1].Value)
	assert.False(t, cookies[1].HttpOnly)

	user, err := m.Issue("u-2", RoleUser, KindDefault)
	require.NoError(t, err)
	assert.Equal(t, "0", m.Cookies(user)[1].Value)

	for _, c := range m.ClearCookies() {
		assert.Equal(t, -1, c.MaxAge)
		assert.Empty(t, c.Value)
	}
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{Role: RoleUser})
	c, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, RoleUser, c.Role)
}
