package user

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/token"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Create(ctx context.Context, u *User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockRepo) FindByPhone(ctx context.Context, phone string) (*User, error) {
	args := m.Called(ctx, phone)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockRepo) FindByID(ctx context.Context, id string) (*User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockRepo) UpdateDetails(ctx context.Context, id string, in UpdateUserDetailsInput) (*User, error) {
	args := m.Called(ctx, id, in)
	u, _ := args.Get(0).(*User)
	return u, args.Error(1)
}

func (m *mockRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockRepo) MarkEmailVerified(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) MarkPhoneVerified(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockIssuer struct{ mock.Mock }

func (m *mockIssuer) IssueCode(ctx context.Context, req token.CodeRequest) (*token.Issued, error) {
	args := m.Called(ctx, req)
	i, _ := args.Get(0).(*token.Issued)
	return i, args.Error(1)
}

func (m *mockIssuer) IssueResetToken(ctx context.Context, req token.ResetRequest) (*token.Issued, error) {
	args := m.Called(ctx, req)
	i, _ := args.Get(0).(*token.Issued)
	return i, args.Error(1)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) VerifyCode(ctx context.Context, identifier string, purpose token.Purpose, code string) (*token.Code, error) {
	args := m.Called(ctx, identifier, purpose, code)
	c, _ := args.Get(0).(*token.Code)
	return c, args.Error(1)
}

func (m *mockVerifier) ConsumeResetToken(ctx context.Context, secret string) (*token.ResetToken, error) {
	args := m.Called(ctx, secret)
	t, _ := args.Get(0).(*token.ResetToken)
	return t, args.Error(1)
}

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Issue(userID, role string, kind session.Kind) (*session.Session, error) {
	args := m.Called(userID, role, kind)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

func (m *mockSessions) Refresh(ctx context.Context, tok string) (*session.Session, error) {
	args := m.Called(ctx, tok)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

func (m *mockSessions) Revoke(ctx context.Context, claims *session.Claims) error {
	return m.Called(ctx, claims).Error(0)
}

func (m *mockSessions) IssueSince(userID, role string, kind session.Kind, since time.Time) (*session.Session, error) {
	args := m.Called(userID, role, kind, since)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

func (m *mockSessions) RevokeUser(ctx context.Context, userID string) (time.Time, error) {
	args := m.Called(ctx, userID)
	cutoff, _ := args.Get(0).(time.Time)
	return cutoff, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeSession(userID, role string, kind session.Kind, ttl time.Duration) *session.Session {
	exp := time.Now().Add(ttl).Truncate(time.Second)
	c := &session.Claims{Role: role, SID: "sid-1", Kind: kind}
	c.Subject = userID
	return &session.Session{Token: "signed." + userID, Claims: c, ExpiresAt: exp}
}

func strPtr(s string) *string { return &s }
