package user

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/heartguard/heartguard-api/internal/session"
)

// CookieWriter turns sessions into response cookies.
type CookieWriter interface {
	Cookies(s *session.Session) []http.Cookie
	ClearCookies() []http.Cookie
}

// Handler holds the dependencies for the user module's HTTP handlers.
type Handler struct {
	service Service
	cookies CookieWriter
	logger  *slog.Logger
}

// NewHandler creates a new handler for the user module.
func NewHandler(service Service, cookies CookieWriter, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		cookies: cookies,
		logger:  logger,
	}
}

// RegisterRoutes sets up the routing for the user module. requireSession
// guards routes that need a signed-in user; optionalSession only attaches
// the claims when a valid session is present.
func (h *Handler) RegisterRoutes(api huma.API, requireSession, optionalSession huma.Middleware) {
	// --- Authentication Routes ---
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Sign in with email, password and phone",
		Tags:        []string{"auth"},
	}, h.LoginHandler)

	huma.Register(api, huma.Operation{
		OperationID: "admin-login",
		Method:      http.MethodPost,
		Path:        "/auth/admin/login",
		Summary:     "Sign in as an administrator",
		Tags:        []string{"auth"},
	}, h.AdminLoginHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Create an account",
		Tags:          []string{"auth"},
		DefaultStatus: http.StatusCreated,
	}, h.SignupHandler)

	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Summary:     "End the current session",
		Tags:        []string{"auth"},
		Middlewares: huma.Middlewares{optionalSession},
	}, h.LogoutHandler)

	huma.Register(api, huma.Operation{
		OperationID: "refresh-session",
		Method:      http.MethodPost,
		Path:        "/auth/refresh-session",
		Summary:     "Extend the current session",
		Tags:        []string{"auth"},
	}, h.RefreshSessionHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/auth/session",
		Summary:     "Describe the current session",
		Tags:        []string{"auth"},
		Middlewares: huma.Middlewares{requireSession},
	}, h.GetSessionHandler)

	// --- Verification Routes ---
	huma.Register(api, huma.Operation{
		OperationID: "send-verification-code",
		Method:      http.MethodPost,
		Path:        "/auth/send-verification-code",
		Summary:     "Send a one-time code by email or SMS",
		Tags:        []string{"verification"},
	}, h.SendVerificationCodeHandler)

	huma.Register(api, huma.Operation{
		OperationID: "verify-code",
		Method:      http.MethodPost,
		Path:        "/auth/verify-code",
		Summary:     "Verify an email address or phone number",
		Tags:        []string{"verification"},
	}, h.VerifyCodeHandler)

	// --- Password Management Routes ---
	huma.Register(api, huma.Operation{
		OperationID: "forgot-password",
		Method:      http.MethodPost,
		Path:        "/auth/forgot-password",
		Summary:     "Email a password reset link",
		Tags:        []string{"password"},
	}, h.ForgotPasswordHandler)

	huma.Register(api, huma.Operation{
		OperationID: "reset-password",
		Method:      http.MethodPost,
		Path:        "/auth/reset-password",
		Summary:     "Reset a password with a link token or a code",
		Tags:        []string{"password"},
	}, h.ResetPasswordHandler)

	huma.Register(api, huma.Operation{
		OperationID: "change-password",
		Method:      http.MethodPost,
		Path:        "/user/change-password",
		Summary:     "Change the password of the signed-in user",
		Tags:        []string{"password"},
		Middlewares: huma.Middlewares{requireSession},
	}, h.ChangePasswordHandler)

	// --- Profile Routes ---
	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/user/profile",
		Summary:     "Get the current user's profile",
		Tags:        []string{"profile"},
		Middlewares: huma.Middlewares{requireSession},
	}, h.GetProfileHandler)

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPatch,
		Path:        "/user/profile",
		Summary:     "Update the current user's profile",
		Tags:        []string{"profile"},
		Middlewares: huma.Middlewares{requireSession},
	}, h.UpdateProfileHandler)
}

// --- Shared DTOs ---

// UserBody is the public representation of a user.
type UserBody struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Role           string    `json:"role"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	EmailVerified  bool      `json:"emailVerified"`
	PhoneVerified  bool      `json:"phoneVerified"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toUserBody(u *User) UserBody {
	return UserBody{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		Role:           u.Role,
		ProfilePicture: u.ProfilePicture,
		EmailVerified:  u.EmailVerified,
		PhoneVerified:  u.PhoneVerified,
		CreatedAt:      u.CreatedAt,
	}
}

// SessionBody describes an issued session. The token itself only travels in
// the HttpOnly cookie.
type SessionBody struct {
	ExpiresAt time.Time `json:"expiresAt"`
	IsAdmin   bool      `json:"isAdmin"`
	Kind      string    `json:"kind"`
}

func toSessionBody(s *session.Session) SessionBody {
	return SessionBody{
		ExpiresAt: s.ExpiresAt,
		IsAdmin:   s.Claims.IsAdmin(),
		Kind:      string(s.Claims.Kind),
	}
}

// MessageBody is returned by operations that only acknowledge.
type MessageBody struct {
	Message string `json:"message"`
}
