package user

import (
	"context"
	"errors"
	"strings"

	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/token"
	"github.com/heartguard/heartguard-api/internal/validation"
)

// ChangePassword sets a new password in one of two modes.
//
// Token mode: the reset token is consumed through the verifier on every call,
// even when the caller also holds a session. No session is returned.
//
// Current-password mode: the caller's session identifies the user and the
// current password must match. A fresh session of the same kind is returned.
//
// Either way every earlier session of the user is revoked.
func (s *service) ChangePassword(ctx context.Context, in ChangePasswordInput) (*session.Session, error) {
	if err := validatePassword("newPassword", in.NewPassword); err != nil {
		return nil, err
	}

	if in.Token != "" {
		if in.CurrentPassword != "" {
			return nil, validation.Field("token", "cannot be combined with currentPassword")
		}
		rt, err := s.verifier.ConsumeResetToken(ctx, in.Token)
		if err != nil {
			return nil, s.tokenErr("consume reset token", err)
		}
		if _, err := s.setPassword(ctx, rt.UserID, in.NewPassword); err != nil {
			return nil, err
		}
		s.logger.Info("password reset with token", "user_id", rt.UserID)
		return nil, nil
	}

	if in.Session == nil {
		return nil, ErrUnauthorized
	}
	if in.CurrentPassword == "" {
		return nil, validation.Field("currentPassword", "is required")
	}

	sctx, cancel := s.storeCtx(ctx)
	user, err := s.repo.FindByID(sctx, in.Session.UserID())
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, s.storeErr("find user by id", err)
	}
	if !checkPasswordHash(in.CurrentPassword, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	cutoff, err := s.setPassword(ctx, user.ID, in.NewPassword)
	if err != nil {
		return nil, err
	}
	s.logger.Info("password changed", "user_id", user.ID)

	sess, err := s.sessions.IssueSince(user.ID, user.Role, in.Session.Kind, cutoff)
	if err != nil {
		s.logger.Error("failed to issue session", "user_id", user.ID, "error", err)
		return nil, ErrInternal.WithCause(err)
	}
	return sess, nil
}

// ResetPasswordWithCode changes the password of the account owning email once
// a password_reset code for that email verifies.
func (s *service) ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error {
	if err := validatePassword("password", newPassword); err != nil {
		return err
	}
	email = normalizeEmail(email)

	c, err := s.verifier.VerifyCode(ctx, email, token.PurposePasswordReset, code)
	if err != nil {
		return s.tokenErr("verify reset code", err)
	}

	userID := ""
	if c.UserID != nil {
		userID = *c.UserID
	} else {
		sctx, cancel := s.storeCtx(ctx)
		user, err := s.repo.FindByEmail(sctx, email)
		cancel()
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidOrExpiredToken.WithCause(err)
			}
			return s.storeErr("find user by email", err)
		}
		userID = user.ID
	}

	if _, err := s.setPassword(ctx, userID, newPassword); err != nil {
		return err
	}
	s.logger.Info("password reset with code", "user_id", userID)
	return nil
}

// RequestPasswordReset sends a reset link to email. Unknown addresses and
// delivery failures look like success to the caller.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	sctx, cancel := s.storeCtx(ctx)
	user, err := s.repo.FindByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return s.storeErr("find user by email", err)
	}

	issued, err := s.issuer.IssueResetToken(ctx, token.ResetRequest{
		UserID:    user.ID,
		Email:     user.Email,
		Recipient: firstName(user.Name),
	})
	if err != nil {
		if errors.Is(err, token.ErrResendTooSoon) {
			return nil
		}
		return s.tokenErr("issue reset token", err)
	}
	if issued.DeliveryErr != nil {
		s.logger.Warn("password reset link not delivered", "user_id", user.ID, "error", issued.DeliveryErr)
	}
	return nil
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return ""
}
