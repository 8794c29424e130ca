package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/validation"
)

// Login authenticates with email, password and phone. All three must match;
// any mismatch yields ErrInvalidCredentials without saying which one.
func (s *service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if strings.TrimSpace(in.Phone) == "" {
		return nil, validation.Field("phone", "is required")
	}

	user, err := s.authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	if !samePhone(in.Phone, user.Phone) {
		s.logger.Info("login rejected", "user_id", user.ID, "reason", "phone mismatch")
		return nil, ErrInvalidCredentials
	}

	kind := session.KindDefault
	if in.RememberMe {
		kind = session.KindRemember
	}
	return s.startSession(user, kind)
}

// AdminLogin authenticates an administrator. A valid non-admin account is
// rejected exactly like a wrong password.
func (s *service) AdminLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		s.logger.Warn("admin login rejected", "user_id", user.ID, "reason", "not an admin")
		return nil, ErrInvalidCredentials
	}
	return s.startSession(user, session.KindAdmin)
}

// Signup creates an account and signs it in with a default session.
func (s *service) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if err := validatePassword("password", in.Password); err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, ErrInternal.WithCause(err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, ErrInternal.WithCause(err)
	}
	user := &User{
		ID:           id.String(),
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		Phone:        validation.NormalizePhone(in.Phone),
		PasswordHash: hash,
		Role:         RoleUser,
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.repo.Create(sctx, user); err != nil {
		return nil, s.storeErr("create user", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return s.startSession(user, session.KindDefault)
}

// Logout revokes the session family of claims.
func (s *service) Logout(ctx context.Context, claims *session.Claims) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if err := s.sessions.Revoke(ctx, claims); err != nil {
		return s.sessionErr("logout", err)
	}
	s.logger.Info("user logged out", "user_id", claims.UserID(), "sid", claims.SID)
	return nil
}

// RefreshSession extends a valid session. The returned expiry is strictly
// later than the current one.
func (s *service) RefreshSession(ctx context.Context, sessionToken string) (*session.Session, error) {
	if sessionToken == "" {
		return nil, ErrUnauthorized
	}
	sess, err := s.sessions.Refresh(ctx, sessionToken)
	if err != nil {
		return nil, s.sessionErr("refresh session", err)
	}
	return sess, nil
}

// authenticate checks email and password. An unknown email still costs one
// bcrypt comparison.
func (s *service) authenticate(ctx context.Context, email, password string) (*User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.repo.FindByEmail(sctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = checkPasswordHash(password, dummyHash())
			return nil, ErrInvalidCredentials
		}
		return nil, s.storeErr("find user by email", err)
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		s.logger.Info("login rejected", "user_id", user.ID, "reason", "password mismatch")
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *service) startSession(user *User, kind session.Kind) (*AuthResult, error) {
	sess, err := s.sessions.Issue(user.ID, user.Role, kind)
	if err != nil {
		s.logger.Error("failed to issue session", "user_id", user.ID, "error", err)
		return nil, ErrInternal.WithCause(err)
	}
	s.logger.Info("session started", "user_id", user.ID, "kind", kind, "expires_at", sess.ExpiresAt)
	return &AuthResult{User: user, Session: sess}, nil
}
