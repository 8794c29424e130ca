package user

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/token"
	"github.com/heartguard/heartguard-api/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	svc      *service
	repo     *mockRepo
	issuer   *mockIssuer
	verifier *mockVerifier
	sessions *mockSessions
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:     &mockRepo{},
		issuer:   &mockIssuer{},
		verifier: &mockVerifier{},
		sessions: &mockSessions{},
	}
	f.svc = NewService(&Config{
		Repo:         f.repo,
		Issuer:       f.issuer,
		Verifier:     f.verifier,
		Sessions:     f.sessions,
		Logger:       discardLogger(),
		StoreTimeout: time.Second,
	}).(*service)
	t.Cleanup(func() {
		f.repo.AssertExpectations(t)
		f.issuer.AssertExpectations(t)
		f.verifier.AssertExpectations(t)
		f.sessions.AssertExpectations(t)
	})
	return f
}

func testUser(t *testing.T, role string) *User {
	t.Helper()
	hash, err := hashPassword("correct-horse")
	require.NoError(t, err)
	return &User{
		ID:           "u-1",
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		Phone:        "+15550100000",
		PasswordHash: hash,
		Role:         role,
	}
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *validation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields(), field)
}

// --- Login ---

func TestLogin_DefaultSession(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	sess := fakeSession(u.ID, RoleUser, session.KindDefault, 4*time.Hour)

	f.repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(u, nil)
	f.sessions.On("Issue", u.ID, RoleUser, session.KindDefault).Return(sess, nil)

	res, err := f.svc.Login(context.Background(), LoginInput{
		Email: " Ada@Example.com ", Password: "correct-horse", Phone: "+1 (555) 010-0000",
	})
	require.NoError(t, err)
	assert.Equal(t, u, res.User)
	assert.Equal(t, sess, res.Session)
}

func TestLogin_RememberMe(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	sess := fakeSession(u.ID, RoleUser, session.KindRemember, 30*24*time.Hour)

	f.repo.On("FindByEmail", mock.Anything, u.Email).Return(u, nil)
	f.sessions.On("Issue", u.ID, RoleUser, session.KindRemember).Return(sess, nil)

	res, err := f.svc.Login(context.Background(), LoginInput{
		Email: u.Email, Password: "correct-horse", Phone: "15550100000", RememberMe: true,
	})
	require.NoError(t, err)
	assert.Equal(t, session.KindRemember, res.Session.Claims.Kind)
}

func TestLogin_PhoneRequired(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: "correct-horse"})
	assertValidation(t, err, "phone")
}

func TestLogin_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		password string
		phone    string
		found    bool
	}{
		{"wrong phone", "correct-horse", "+15550199999", true},
		{"wrong password", "wrong-horse", "+15550100000", true},
		{"unknown email", "correct-horse", "+15550100000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			if tt.found {
				f.repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(testUser(t, RoleUser), nil)
			} else {
				f.repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, ErrNotFound)
			}

			_, err := f.svc.Login(context.Background(), LoginInput{
				Email: "ada@example.com", Password: tt.password, Phone: tt.phone,
			})
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			f.sessions.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLogin_StoreUnavailable(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, context.DeadlineExceeded)

	_, err := f.svc.Login(context.Background(), LoginInput{
		Email: "ada@example.com", Password: "x", Phone: "+15550100000",
	})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestLogin_StoreFailureIsInternal(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, errors.New("syntax error"))

	_, err := f.svc.Login(context.Background(), LoginInput{
		Email: "ada@example.com", Password: "x", Phone: "+15550100000",
	})
	assert.ErrorIs(t, err, ErrInternal)
}

// --- AdminLogin ---

func TestAdminLogin_NonAdminRejected(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(testUser(t, RoleUser), nil)

	_, err := f.svc.AdminLogin(context.Background(), "ada@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLogin_AdminSession(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleAdmin)
	sess := fakeSession(u.ID, RoleAdmin, session.KindAdmin, 8*time.Hour)

	f.repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(u, nil)
	f.sessions.On("Issue", u.ID, RoleAdmin, session.KindAdmin).Return(sess, nil)

	res, err := f.svc.AdminLogin(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.True(t, res.Session.Claims.IsAdmin())
}

// --- Signup ---

func TestSignup_CreatesUserAndSession(t *testing.T) {
	f := newServiceFixture(t)
	var created *User

	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(u *User) bool {
		return u.Email == "ada@example.com" && u.Phone == "+15550100000" && u.Role == RoleUser
	})).Run(func(args mock.Arguments) {
		created = args.Get(1).(*User)
	}).Return(nil)
	f.sessions.On("Issue", mock.AnythingOfType("string"), RoleUser, session.KindDefault).
		Return(fakeSession("new", RoleUser, session.KindDefault, 4*time.Hour), nil)

	res, err := f.svc.Signup(context.Background(), SignupInput{
		Name: " Ada ", Email: "ADA@example.com", Password: "correct-horse", Phone: "+1 555 010 0000",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Ada", created.Name)
	assert.NotEqual(t, "correct-horse", created.PasswordHash)
	assert.True(t, checkPasswordHash("correct-horse", created.PasswordHash))
	assert.Equal(t, created, res.User)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(ErrEmailExists.WithCause(errors.New("23505")))

	_, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Ada", Email: "ada@example.com", Password: "correct-horse", Phone: "+15550100000",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestSignup_ShortPassword(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Ada", Email: "ada@example.com", Password: "short", Phone: "+15550100000",
	})
	assertValidation(t, err, "password")
}

// --- Logout / Refresh ---

func TestLogout_RevokesFamily(t *testing.T) {
	f := newServiceFixture(t)
	claims := fakeSession("u-1", RoleUser, session.KindDefault, time.Hour).Claims
	f.sessions.On("Revoke", mock.Anything, claims).Return(nil)

	require.NoError(t, f.svc.Logout(context.Background(), claims))
}

func TestLogout_Unavailable(t *testing.T) {
	f := newServiceFixture(t)
	claims := fakeSession("u-1", RoleUser, session.KindDefault, time.Hour).Claims
	f.sessions.On("Revoke", mock.Anything, claims).Return(session.ErrUnavailable)

	assert.ErrorIs(t, f.svc.Logout(context.Background(), claims), ErrServiceUnavailable)
}

func TestRefreshSession(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"ok", nil, nil},
		{"invalid", session.ErrInvalidSession, ErrUnauthorized},
		{"unavailable", session.ErrUnavailable, ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			var sess *session.Session
			if tt.err == nil {
				sess = fakeSession("u-1", RoleUser, session.KindDefault, 4*time.Hour)
			}
			f.sessions.On("Refresh", mock.Anything, "tok").Return(sess, tt.err)

			got, err := f.svc.RefreshSession(context.Background(), "tok")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, sess, got)
		})
	}
}

func TestRefreshSession_Empty(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.RefreshSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

// --- ChangePassword ---

func TestChangePassword_TokenModeAlwaysConsumesToken(t *testing.T) {
	f := newServiceFixture(t)
	claims := fakeSession("u-1", RoleUser, session.KindDefault, time.Hour).Claims

	f.verifier.On("ConsumeResetToken", mock.Anything, "reset-secret").Return(&token.ResetToken{UserID: "u-1"}, nil)
	f.repo.On("UpdatePassword", mock.Anything, "u-1", mock.AnythingOfType("string")).Return(nil)
	f.sessions.On("RevokeUser", mock.Anything, "u-1").Return(time.Time{}, nil)

	sess, err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		Session: claims, Token: "reset-secret", NewPassword: "new-password",
	})
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestChangePassword_TokenRejected(t *testing.T) {
	for _, reason := range []error{token.ErrExpired, token.ErrAlreadyConsumed, token.ErrNoMatch} {
		t.Run(reason.Error(), func(t *testing.T) {
			f := newServiceFixture(t)
			f.verifier.On("ConsumeResetToken", mock.Anything, "reset-secret").Return(nil, reason)

			_, err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
				Token: "reset-secret", NewPassword: "new-password",
			})
			assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
			f.repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestChangePassword_TokenAndCurrentPassword(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		Token: "reset-secret", CurrentPassword: "correct-horse", NewPassword: "new-password",
	})
	assertValidation(t, err, "token")
}

func TestChangePassword_CurrentMode(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	claims := fakeSession(u.ID, RoleUser, session.KindRemember, time.Hour).Claims
	fresh := fakeSession(u.ID, RoleUser, session.KindRemember, 30*24*time.Hour)

	f.repo.On("FindByID", mock.Anything, u.ID).Return(u, nil)
	f.repo.On("UpdatePassword", mock.Anything, u.ID, mock.MatchedBy(func(h string) bool {
		return checkPasswordHash("new-password", h)
	})).Return(nil)
	cutoff := time.Now().Truncate(time.Second).Add(time.Second)
	f.sessions.On("RevokeUser", mock.Anything, u.ID).Return(cutoff, nil)
	f.sessions.On("IssueSince", u.ID, RoleUser, session.KindRemember, cutoff).Return(fresh, nil)

	sess, err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		Session: claims, CurrentPassword: "correct-horse", NewPassword: "new-password",
	})
	require.NoError(t, err)
	assert.Equal(t, fresh, sess)
}

func TestChangePassword_OnlyFreshSessionSurvives(t *testing.T) {
	u := testUser(t, RoleUser)
	repo := &mockRepo{}
	repo.On("FindByID", mock.Anything, u.ID).Return(u, nil)
	repo.On("UpdatePassword", mock.Anything, u.ID, mock.Anything).Return(nil)

	sessions, err := session.NewManager(session.Config{Secret: "change-secret"}, session.NewMemoryProvider())
	require.NoError(t, err)
	svc := NewService(&Config{Repo: repo, Sessions: sessions, Logger: discardLogger()})

	current, err := sessions.Issue(u.ID, RoleUser, session.KindDefault)
	require.NoError(t, err)
	other, err := sessions.Issue(u.ID, RoleUser, session.KindRemember)
	require.NoError(t, err)

	fresh, err := svc.ChangePassword(context.Background(), ChangePasswordInput{
		Session: current.Claims, CurrentPassword: "correct-horse", NewPassword: "new-password",
	})
	require.NoError(t, err)
	require.NotNil(t, fresh)

	for _, tok := range []string{current.Token, other.Token} {
		_, err := sessions.Parse(context.Background(), tok)
		assert.ErrorIs(t, err, session.ErrInvalidSession)
	}
	claims, err := sessions.Parse(context.Background(), fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, session.KindDefault, claims.Kind)
	repo.AssertExpectations(t)
}

func TestChangePassword_CurrentModeWrongPassword(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	claims := fakeSession(u.ID, RoleUser, session.KindDefault, time.Hour).Claims
	f.repo.On("FindByID", mock.Anything, u.ID).Return(u, nil)

	_, err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		Session: claims, CurrentPassword: "wrong-horse", NewPassword: "new-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword_CurrentModeNeedsSession(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		CurrentPassword: "correct-horse", NewPassword: "new-password",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestChangePassword_RevokeFailureDoesNotFail(t *testing.T) {
	f := newServiceFixture(t)
	f.verifier.On("ConsumeResetToken", mock.Anything, "reset-secret").Return(&token.ResetToken{UserID: "u-1"}, nil)
	f.repo.On("UpdatePassword", mock.Anything, "u-1", mock.Anything).Return(nil)
	f.sessions.On("RevokeUser", mock.Anything, "u-1").Return(time.Time{}, session.ErrUnavailable)

	_, err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		Token: "reset-secret", NewPassword: "new-password",
	})
	assert.NoError(t, err)
}

func TestChangePassword_ShortPassword(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		Token: "reset-secret", NewPassword: "short",
	})
	assertValidation(t, err, "newPassword")
}

// --- Password reset ---

func TestResetPasswordWithCode(t *testing.T) {
	f := newServiceFixture(t)
	f.verifier.On("VerifyCode", mock.Anything, "ada@example.com", token.PurposePasswordReset, "123456").
		Return(&token.Code{UserID: strPtr("u-1")}, nil)
	f.repo.On("UpdatePassword", mock.Anything, "u-1", mock.Anything).Return(nil)
	f.sessions.On("RevokeUser", mock.Anything, "u-1").Return(time.Time{}, nil)

	require.NoError(t, f.svc.ResetPasswordWithCode(context.Background(), "Ada@Example.com", "123456", "new-password"))
}

func TestResetPasswordWithCode_Rejected(t *testing.T) {
	f := newServiceFixture(t)
	f.verifier.On("VerifyCode", mock.Anything, "ada@example.com", token.PurposePasswordReset, "000000").
		Return(nil, token.ErrAttemptsExhausted)

	err := f.svc.ResetPasswordWithCode(context.Background(), "ada@example.com", "000000", "new-password")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, ErrNotFound)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
	f.issuer.AssertNotCalled(t, "IssueResetToken", mock.Anything, mock.Anything)
}

func TestRequestPasswordReset_IssuesLink(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	f.repo.On("FindByEmail", mock.Anything, u.Email).Return(u, nil)
	f.issuer.On("IssueResetToken", mock.Anything, token.ResetRequest{UserID: u.ID, Email: u.Email, Recipient: "Ada"}).
		Return(&token.Issued{DeliveryErr: errors.New("smtp down")}, nil)

	assert.NoError(t, f.svc.RequestPasswordReset(context.Background(), u.Email))
}

// --- Verification codes ---

func TestSendVerificationCode_Email(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	exp := time.Now().Add(10 * time.Minute)

	f.repo.On("FindByEmail", mock.Anything, u.Email).Return(u, nil)
	f.issuer.On("IssueCode", mock.Anything, mock.MatchedBy(func(r token.CodeRequest) bool {
		return r.Identifier == u.Email && r.Purpose == token.PurposeEmailVerify &&
			r.Channel == token.ChannelEmail && r.UserID != nil && *r.UserID == u.ID
	})).Return(&token.Issued{Secret: "123456", ExpiresAt: exp}, nil)

	res, err := f.svc.SendVerificationCode(context.Background(), SendCodeInput{
		Identifier: u.Email, Method: token.ChannelEmail,
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, exp, res.ExpiresAt)
}

func TestSendVerificationCode_DeliveryFailureReported(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("FindByPhone", mock.Anything, "+15550100000").Return(nil, ErrNotFound)
	f.issuer.On("IssueCode", mock.Anything, mock.MatchedBy(func(r token.CodeRequest) bool {
		return r.Identifier == "+15550100000" && r.Purpose == token.PurposeSMSVerify && r.UserID == nil
	})).Return(&token.Issued{Secret: "123456", ExpiresAt: time.Now(), DeliveryErr: errors.New("sns down")}, nil)

	res, err := f.svc.SendVerificationCode(context.Background(), SendCodeInput{
		Identifier: "+1 555 010 0000", Method: token.ChannelSMS,
	})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, msgCodeNotDelivered, res.Message)
}

func TestSendVerificationCode_TooSoon(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, ErrNotFound)
	f.issuer.On("IssueCode", mock.Anything, mock.Anything).Return(nil, token.ErrResendTooSoon)

	_, err := f.svc.SendVerificationCode(context.Background(), SendCodeInput{
		Identifier: "ada@example.com", Method: token.ChannelEmail,
	})
	assert.ErrorIs(t, err, ErrResendTooSoon)
}

// downThrottle fails like an unreachable Redis.
type downThrottle struct{}

func (downThrottle) Allow(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
}

func (downThrottle) Release(context.Context, string) error { return nil }

func TestSendVerificationCode_ThrottleUnavailable(t *testing.T) {
	repo := &mockRepo{}
	repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(nil, ErrNotFound)

	svc := NewService(&Config{
		Repo:     repo,
		Issuer:   token.NewIssuer(nil, downThrottle{}, nil, token.Config{ResendCooldown: time.Minute}),
		Sessions: &mockSessions{},
		Logger:   discardLogger(),
	})

	_, err := svc.SendVerificationCode(context.Background(), SendCodeInput{
		Identifier: "ada@example.com", Method: token.ChannelEmail,
	})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	repo.AssertExpectations(t)
}

func TestRequestPasswordReset_ThrottleUnavailable(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	f.repo.On("FindByEmail", mock.Anything, u.Email).Return(u, nil)
	f.issuer.On("IssueResetToken", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("resend throttle: %w: %w", token.ErrUnavailable, errors.New("i/o timeout")))

	err := f.svc.RequestPasswordReset(context.Background(), u.Email)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestSendVerificationCode_MethodMismatch(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.SendVerificationCode(context.Background(), SendCodeInput{
		Identifier: "ada@example.com", Method: token.ChannelSMS, Purpose: token.PurposeEmailVerify,
	})
	assertValidation(t, err, "method")
}

func TestSendVerificationCode_ResetUnknownEmail(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, ErrNotFound)

	res, err := f.svc.SendVerificationCode(context.Background(), SendCodeInput{
		Identifier: "nobody@example.com", Method: token.ChannelEmail, Purpose: token.PurposePasswordReset,
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	f.issuer.AssertNotCalled(t, "IssueCode", mock.Anything, mock.Anything)
}

func TestSendVerificationCode_ResetBySMSKeyedByEmail(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	f.repo.On("FindByEmail", mock.Anything, u.Email).Return(u, nil)
	f.issuer.On("IssueCode", mock.Anything, mock.MatchedBy(func(r token.CodeRequest) bool {
		return r.Identifier == u.Email && r.Destination == u.Phone && r.Channel == token.ChannelSMS
	})).Return(&token.Issued{ExpiresAt: time.Now()}, nil)

	_, err := f.svc.SendVerificationCode(context.Background(), SendCodeInput{
		Identifier: u.Email, Method: token.ChannelSMS, Purpose: token.PurposePasswordReset,
	})
	require.NoError(t, err)
}

func TestVerifyCode_MarksEmailVerified(t *testing.T) {
	f := newServiceFixture(t)
	f.verifier.On("VerifyCode", mock.Anything, "ada@example.com", token.PurposeEmailVerify, "123456").
		Return(&token.Code{UserID: strPtr("u-1")}, nil)
	f.repo.On("MarkEmailVerified", mock.Anything, "u-1").Return(nil)

	res, err := f.svc.VerifyCode(context.Background(), "Ada@example.com", " 123456 ")
	require.NoError(t, err)
	require.NotNil(t, res.UserID)
	assert.Equal(t, "u-1", *res.UserID)
	assert.Equal(t, token.PurposeEmailVerify, res.Purpose)
}

func TestVerifyCode_MarksPhoneVerified(t *testing.T) {
	f := newServiceFixture(t)
	f.verifier.On("VerifyCode", mock.Anything, "+15550100000", token.PurposeSMSVerify, "123456").
		Return(&token.Code{UserID: strPtr("u-1")}, nil)
	f.repo.On("MarkPhoneVerified", mock.Anything, "u-1").Return(nil)

	_, err := f.svc.VerifyCode(context.Background(), "+1 (555) 010-0000", "123456")
	require.NoError(t, err)
}

func TestVerifyCode_UnboundCodeMarksNothing(t *testing.T) {
	f := newServiceFixture(t)
	f.verifier.On("VerifyCode", mock.Anything, "new@example.com", token.PurposeEmailVerify, "123456").
		Return(&token.Code{}, nil)

	res, err := f.svc.VerifyCode(context.Background(), "new@example.com", "123456")
	require.NoError(t, err)
	assert.Nil(t, res.UserID)
}

func TestVerifyCode_AlreadyConsumedLooksInvalid(t *testing.T) {
	f := newServiceFixture(t)
	f.verifier.On("VerifyCode", mock.Anything, "ada@example.com", token.PurposeEmailVerify, "123456").
		Return(nil, token.ErrAlreadyConsumed)

	_, err := f.svc.VerifyCode(context.Background(), "ada@example.com", "123456")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

// --- Profile ---

func TestUpdateUserDetails(t *testing.T) {
	f := newServiceFixture(t)
	u := testUser(t, RoleUser)
	in := UpdateUserDetailsInput{Name: strPtr("Ada King")}
	f.repo.On("UpdateDetails", mock.Anything, u.ID, in).Return(u, nil)

	got, err := f.svc.UpdateUserDetails(context.Background(), u.ID, UpdateUserDetailsInput{Name: strPtr(" Ada King ")})
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestUpdateUserDetails_EmptyName(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.UpdateUserDetails(context.Background(), "u-1", UpdateUserDetailsInput{Name: strPtr("  ")})
	assertValidation(t, err, "name")
}

func TestGetProfile_NotFound(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("FindByID", mock.Anything, "u-1").Return(nil, ErrNotFound)

	_, err := f.svc.GetProfile(context.Background(), "u-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
