package user

import (
	"time"

	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/token"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a user in the system.
// This is the core entity for the user module, used across the repository, service, and handler layers.
type User struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	Phone          string    `db:"phone"`
	PasswordHash   string    `db:"password_hash"`
	Role           string    `db:"role"`
	ProfilePicture string    `db:"profile_picture"`
	EmailVerified  bool      `db:"email_verified"`
	PhoneVerified  bool      `db:"phone_verified"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// --- Service inputs & results ---

type LoginInput struct {
	Email      string
	Password   string
	Phone      string
	RememberMe bool
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// ChangePasswordInput selects its mode by Token: with a token the reset token
// authorizes the change, otherwise Session and CurrentPassword do.
type ChangePasswordInput struct {
	Session         *session.Claims
	CurrentPassword string
	Token           string
	NewPassword     string
}

// UpdateUserDetailsInput holds the non-security profile fields. Nil fields are
// left unchanged.
type UpdateUserDetailsInput struct {
	Name           *string
	ProfilePicture *string
}

// SendCodeInput requests a verification or password reset code.
type SendCodeInput struct {
	Identifier string
	Method     token.Channel
	Purpose    token.Purpose
}

// AuthResult is returned by every operation that signs a user in.
type AuthResult struct {
	User    *User
	Session *session.Session
}

// CodeDispatch reports an issued code. Delivered is false when the code was
// stored but could not be sent; the caller should offer to resend.
type CodeDispatch struct {
	ExpiresAt time.Time
	Delivered bool
	Message   string
}

// VerifyResult is the identity a verified code was bound to, if any.
type VerifyResult struct {
	UserID  *string
	Purpose token.Purpose
}
