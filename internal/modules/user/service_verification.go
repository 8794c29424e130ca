package user

import (
	"context"
	"errors"
	"strings"

	"github.com/heartguard/heartguard-api/internal/token"
	"github.com/heartguard/heartguard-api/internal/validation"
)

const (
	msgCodeSent         = "A verification code has been sent."
	msgCodeNotDelivered = "The code could not be sent right now. Please request a new one."
)

// SendVerificationCode issues a code for the identifier and delivers it over
// the chosen channel. Password reset codes are always bound to the account
// email; for an unknown email nothing is issued but the reply looks the same.
func (s *service) SendVerificationCode(ctx context.Context, in SendCodeInput) (*CodeDispatch, error) {
	purpose := in.Purpose
	if purpose == "" {
		purpose = token.PurposeEmailVerify
		if in.Method == token.ChannelSMS {
			purpose = token.PurposeSMSVerify
		}
	}

	req := token.CodeRequest{Purpose: purpose, Channel: in.Method}

	switch purpose {
	case token.PurposeEmailVerify:
		if in.Method != token.ChannelEmail {
			return nil, validation.Field("method", "must be email for email verification")
		}
		req.Identifier = normalizeEmail(in.Identifier)
		if !strings.Contains(req.Identifier, "@") {
			return nil, validation.Field("identifier", "must be a valid email")
		}
		user, err := s.lookup(ctx, "find user by email", func(ctx context.Context) (*User, error) {
			return s.repo.FindByEmail(ctx, req.Identifier)
		})
		if err != nil {
			return nil, err
		}
		if user != nil {
			req.UserID, req.Recipient = &user.ID, firstName(user.Name)
		}

	case token.PurposeSMSVerify:
		if in.Method != token.ChannelSMS {
			return nil, validation.Field("method", "must be sms for phone verification")
		}
		if !validation.IsPhone(in.Identifier) {
			return nil, validation.Field("identifier", "must be a valid phone number")
		}
		req.Identifier = validation.NormalizePhone(in.Identifier)
		user, err := s.lookup(ctx, "find user by phone", func(ctx context.Context) (*User, error) {
			return s.repo.FindByPhone(ctx, req.Identifier)
		})
		if err != nil {
			return nil, err
		}
		if user != nil {
			req.UserID, req.Recipient = &user.ID, firstName(user.Name)
		}

	case token.PurposePasswordReset:
		req.Identifier = normalizeEmail(in.Identifier)
		if !strings.Contains(req.Identifier, "@") {
			return nil, validation.Field("identifier", "must be the account email")
		}
		user, err := s.lookup(ctx, "find user by email", func(ctx context.Context) (*User, error) {
			return s.repo.FindByEmail(ctx, req.Identifier)
		})
		if err != nil {
			return nil, err
		}
		if user == nil {
			s.logger.Info("reset code requested for unknown email")
			return &CodeDispatch{ExpiresAt: s.now().Add(s.codeTTL), Delivered: true, Message: msgCodeSent}, nil
		}
		req.UserID, req.Recipient = &user.ID, firstName(user.Name)
		if in.Method == token.ChannelSMS {
			if user.Phone == "" {
				return nil, validation.Field("method", "no phone number on this account")
			}
			req.Destination = user.Phone
		}

	default:
		return nil, validation.Field("purpose", "must be one of: email_verify, sms_verify, password_reset")
	}

	issued, err := s.issuer.IssueCode(ctx, req)
	if err != nil {
		return nil, s.tokenErr("issue code", err)
	}

	out := &CodeDispatch{ExpiresAt: issued.ExpiresAt, Delivered: true, Message: msgCodeSent}
	if issued.DeliveryErr != nil {
		s.logger.Warn("verification code not delivered", "purpose", purpose, "channel", in.Method, "error", issued.DeliveryErr)
		out.Delivered = false
		out.Message = msgCodeNotDelivered
	}
	return out, nil
}

// VerifyCode consumes a contact verification code. The purpose follows from
// the identifier: an email address verifies email, anything else a phone.
func (s *service) VerifyCode(ctx context.Context, identifier, code string) (*VerifyResult, error) {
	purpose := token.PurposeSMSVerify
	id := validation.NormalizePhone(identifier)
	if strings.Contains(identifier, "@") {
		purpose = token.PurposeEmailVerify
		id = normalizeEmail(identifier)
	}

	c, err := s.verifier.VerifyCode(ctx, id, purpose, strings.TrimSpace(code))
	if err != nil {
		return nil, s.tokenErr("verify code", err)
	}

	if c.UserID != nil {
		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		if purpose == token.PurposeEmailVerify {
			err = s.repo.MarkEmailVerified(sctx, *c.UserID)
		} else {
			err = s.repo.MarkPhoneVerified(sctx, *c.UserID)
		}
		if err != nil {
			return nil, s.storeErr("mark verified", err)
		}
		s.logger.Info("contact verified", "user_id", *c.UserID, "purpose", purpose)
	}

	return &VerifyResult{UserID: c.UserID, Purpose: purpose}, nil
}

// lookup runs a repository lookup under the store timeout and returns a nil
// user when nothing matched.
func (s *service) lookup(ctx context.Context, op string, find func(context.Context) (*User, error)) (*User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	user, err := find(sctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, s.storeErr(op, err)
	}
	return user, nil
}
