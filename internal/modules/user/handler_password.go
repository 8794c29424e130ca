package user

import (
	"context"
	"net/http"

	"github.com/heartguard/heartguard-api/internal/httpx"
	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/validation"
)

// --- DTOs ---

// ForgotPasswordRequest defines the structure for initiating a password reset.
type ForgotPasswordRequest struct {
	Body struct {
		Email string `json:"email,omitempty" validate:"required,email"`
	}
}

type ForgotPasswordResponse struct {
	Body MessageBody
}

// ResetPasswordRequest accepts either a link token with newPassword, or an
// email with the emailed code and the new password.
type ResetPasswordRequest struct {
	Body struct {
		Token       string `json:"token,omitempty" validate:"excluded_with=Email"`
		NewPassword string `json:"newPassword,omitempty" validate:"omitempty,min=8,max=72"`

		Email    string `json:"email,omitempty" validate:"omitempty,email"`
		Code     string `json:"code,omitempty" validate:"omitempty,numeric"`
		Password string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	}
}

type ResetPasswordResponse struct {
	Body MessageBody
}

// ChangePasswordRequest changes the password of the signed-in user. A reset
// token may be given instead of the current password.
type ChangePasswordRequest struct {
	Body struct {
		CurrentPassword string `json:"currentPassword,omitempty" validate:"required_without=Token"`
		Token           string `json:"token,omitempty"`
		NewPassword     string `json:"newPassword,omitempty" validate:"required,min=8,max=72"`
	}
}

type ChangePasswordResponse struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      MessageBody
}

// --- Handlers ---

// ForgotPasswordHandler emails a reset link. The reply is the same whether or
// not the address belongs to an account.
func (h *Handler) ForgotPasswordHandler(ctx context.Context, input *ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	if err := h.service.RequestPasswordReset(ctx, input.Body.Email); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	return &ForgotPasswordResponse{
		Body: MessageBody{Message: "If an account exists for this email, a reset link has been sent."},
	}, nil
}

// ResetPasswordHandler completes a reset with a link token or an emailed code.
func (h *Handler) ResetPasswordHandler(ctx context.Context, input *ResetPasswordRequest) (*ResetPasswordResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	b := input.Body
	var err error
	switch {
	case b.Token != "":
		if b.NewPassword == "" {
			return nil, httpx.ToProblem(ctx, validation.Field("newPassword", "is required"))
		}
		_, err = h.service.ChangePassword(ctx, ChangePasswordInput{Token: b.Token, NewPassword: b.NewPassword})
	case b.Email != "":
		if b.Code == "" {
			return nil, httpx.ToProblem(ctx, validation.Field("code", "is required"))
		}
		if b.Password == "" {
			return nil, httpx.ToProblem(ctx, validation.Field("password", "is required"))
		}
		err = h.service.ResetPasswordWithCode(ctx, b.Email, b.Code, b.Password)
	default:
		return nil, httpx.ToProblem(ctx, validation.Field("token", "is required when email is not provided"))
	}
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	return &ResetPasswordResponse{
		Body: MessageBody{Message: "Your password has been reset. Please sign in again."},
	}, nil
}

// ChangePasswordHandler changes the password and replaces the session cookie
// with a fresh one, since every earlier session was revoked.
func (h *Handler) ChangePasswordHandler(ctx context.Context, input *ChangePasswordRequest) (*ChangePasswordResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	claims, ok := session.ClaimsFromContext(ctx)
	if !ok {
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}

	sess, err := h.service.ChangePassword(ctx, ChangePasswordInput{
		Session:         claims,
		CurrentPassword: input.Body.CurrentPassword,
		Token:           input.Body.Token,
		NewPassword:     input.Body.NewPassword,
	})
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	out := &ChangePasswordResponse{Body: MessageBody{Message: "Your password has been changed."}}
	if sess != nil {
		out.SetCookie = h.cookies.Cookies(sess)
	} else {
		out.SetCookie = h.cookies.ClearCookies()
	}
	return out, nil
}
