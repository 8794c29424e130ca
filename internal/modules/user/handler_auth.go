package user

import (
	"context"
	"net/http"
	"time"

	"github.com/heartguard/heartguard-api/internal/httpx"
	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/validation"
)

// --- DTOs (Data Transfer Objects) ---

// LoginRequest defines the structure for the user login request body.
type LoginRequest struct {
	Body struct {
		Email      string `json:"email,omitempty" validate:"required,email"`
		Password   string `json:"password,omitempty" validate:"required"`
		Phone      string `json:"phone,omitempty" validate:"required,phone"`
		RememberMe bool   `json:"rememberMe,omitempty"`
	}
}

// AdminLoginRequest defines the structure for the admin login request body.
type AdminLoginRequest struct {
	Body struct {
		Email    string `json:"email,omitempty" validate:"required,email"`
		Password string `json:"password,omitempty" validate:"required"`
	}
}

// SignupRequest defines the structure for the signup request body.
type SignupRequest struct {
	Body struct {
		Name     string `json:"name,omitempty" validate:"required,min=2,max=100"`
		Email    string `json:"email,omitempty" validate:"required,email"`
		Password string `json:"password,omitempty" validate:"required,min=8,max=72"`
		Phone    string `json:"phone,omitempty" validate:"required,phone"`
	}
}

// AuthResponse sets the session cookies and describes the signed-in user.
type AuthResponse struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      struct {
		User    UserBody    `json:"user"`
		Session SessionBody `json:"session"`
	}
}

type LogoutRequest struct{}

type LogoutResponse struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      MessageBody
}

// RefreshSessionRequest reads the session straight from its cookie.
type RefreshSessionRequest struct {
	Session string `cookie:"session"`
}

type RefreshSessionResponse struct {
	SetCookie []http.Cookie `header:"Set-Cookie"`
	Body      SessionBody
}

type GetSessionRequest struct{}

// GetSessionResponse is the identity a client caches between revalidations.
type GetSessionResponse struct {
	Body struct {
		UserID    string    `json:"userId"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Role      string    `json:"role"`
		IsAdmin   bool      `json:"isAdmin"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
}

// --- Mapper ---

func (h *Handler) toAuthResponse(res *AuthResult) *AuthResponse {
	out := &AuthResponse{SetCookie: h.cookies.Cookies(res.Session)}
	out.Body.User = toUserBody(res.User)
	out.Body.Session = toSessionBody(res.Session)
	return out
}

// --- Handlers ---

// LoginHandler handles the user login endpoint.
func (h *Handler) LoginHandler(ctx context.Context, input *LoginRequest) (*AuthResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	res, err := h.service.Login(ctx, LoginInput{
		Email:      input.Body.Email,
		Password:   input.Body.Password,
		Phone:      input.Body.Phone,
		RememberMe: input.Body.RememberMe,
	})
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return h.toAuthResponse(res), nil
}

// AdminLoginHandler handles the administrator login endpoint.
func (h *Handler) AdminLoginHandler(ctx context.Context, input *AdminLoginRequest) (*AuthResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	res, err := h.service.AdminLogin(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return h.toAuthResponse(res), nil
}

// SignupHandler handles the signup endpoint.
func (h *Handler) SignupHandler(ctx context.Context, input *SignupRequest) (*AuthResponse, error) {
	if verr := validation.ValidateStruct(&input.Body); verr != nil {
		return nil, httpx.ToProblem(ctx, verr)
	}

	res, err := h.service.Signup(ctx, SignupInput{
		Name:     input.Body.Name,
		Email:    input.Body.Email,
		Password: input.Body.Password,
		Phone:    input.Body.Phone,
	})
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return h.toAuthResponse(res), nil
}

// LogoutHandler revokes the session when there is one and always clears the
// cookies, so a client is never stuck signed in locally.
func (h *Handler) LogoutHandler(ctx context.Context, _ *LogoutRequest) (*LogoutResponse, error) {
	if claims, ok := session.ClaimsFromContext(ctx); ok {
		if err := h.service.Logout(ctx, claims); err != nil {
			h.logger.Error("logout: revoke failed", "user_id", claims.UserID(), "error", err)
		}
	}
	return &LogoutResponse{
		SetCookie: h.cookies.ClearCookies(),
		Body:      MessageBody{Message: "Signed out."},
	}, nil
}

// RefreshSessionHandler replaces the session cookie with one that expires
// strictly later.
func (h *Handler) RefreshSessionHandler(ctx context.Context, input *RefreshSessionRequest) (*RefreshSessionResponse, error) {
	sess, err := h.service.RefreshSession(ctx, input.Session)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &RefreshSessionResponse{
		SetCookie: h.cookies.Cookies(sess),
		Body:      toSessionBody(sess),
	}, nil
}

// GetSessionHandler returns the identity behind the current session.
func (h *Handler) GetSessionHandler(ctx context.Context, _ *GetSessionRequest) (*GetSessionResponse, error) {
	claims, ok := session.ClaimsFromContext(ctx)
	if !ok {
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}

	user, err := h.service.GetProfile(ctx, claims.UserID())
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	out := &GetSessionResponse{}
	out.Body.UserID = user.ID
	out.Body.Name = user.Name
	out.Body.Email = user.Email
	out.Body.Role = claims.Role
	out.Body.IsAdmin = claims.IsAdmin()
	if claims.ExpiresAt != nil {
		out.Body.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
