package user

import (
	"context"
	"time"

	"github.com/heartguard/heartguard-api/internal/httpx"
	"github.com/heartguard/heartguard-api/internal/token"
	"github.com/heartguard/heartguard-api/internal/validation"
)

// --- DTOs ---

// SendVerificationCodeRequest asks for a one-time code. Purpose defaults to
// verifying the identifier over the chosen method.
type SendVerificationCodeRequest struct {
	Body struct {
		Identifier string `json:"identifier,omitempty" validate:"required,max=254"`
		Method     string `json:"method,omitempty" validate:"required,oneof=email sms"`
		Purpose    string `json:"purpose,omitempty" validate:"omitempty,oneof=email_verify sms_verify password_reset"`
	}
}

type SendVerificationCodeResponse struct {
	Body struct {
		ExpiresAt time.Time `json:"expiresAt"`
		Delivered bool      `json:"delivered"`
		Message   string    `json:"message"`
	}
}

// VerifyCodeRequest defines the structure for confirming a 6-digit code.
type VerifyCodeRequest struct {
	Body struct {
		Identifier string `json:"identifier,omitempty" validate:"required,max=254"`
		Code       string `json:"code,omitempty" validate:"required,numeric,min=4,max=10"`
	}
}

type VerifyCodeResponse struct {
	Body struct {
		Verified bool   `json:"verified"`
		Purpose  string `json:"purpose"`
		UserID   string `json:"userId,omitempty"`
	}
}

// --- Handlers ---

// SendVerificationCodeHandler issues a code and reports whether it went out.
func (h *Handler) SendVerificationCodeHandler(ctx context.Context, input *SendVerificationCodeRequest) (*SendVerificationCodeResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	res, err := h.service.SendVerificationCode(ctx, SendCodeInput{
		Identifier: input.Body.Identifier,
		Method:     token.Channel(input.Body.Method),
		Purpose:    token.Purpose(input.Body.Purpose),
	})
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	out := &SendVerificationCodeResponse{}
	out.Body.ExpiresAt = res.ExpiresAt
	out.Body.Delivered = res.Delivered
	out.Body.Message = res.Message
	return out, nil
}

// VerifyCodeHandler consumes the code and marks the contact verified.
func (h *Handler) VerifyCodeHandler(ctx context.Context, input *VerifyCodeRequest) (*VerifyCodeResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	res, err := h.service.VerifyCode(ctx, input.Body.Identifier, input.Body.Code)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	out := &VerifyCodeResponse{}
	out.Body.Verified = true
	out.Body.Purpose = string(res.Purpose)
	if res.UserID != nil {
		out.Body.UserID = *res.UserID
	}
	return out, nil
}
