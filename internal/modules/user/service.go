package user

import (
	"context"
	"log/slog"
	"time"

	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/token"
)

// Service is the auth facade: the only entry point handlers call. Every
// error it returns is a *DomainError or a validation error; collaborator
// errors are kept as causes for logs only.
type Service interface {
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	AdminLogin(ctx context.Context, email, password string) (*AuthResult, error)
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Logout(ctx context.Context, claims *session.Claims) error
	RefreshSession(ctx context.Context, sessionToken string) (*session.Session, error)

	// ChangePassword returns a fresh session in current-password mode and nil
	// in token mode.
	ChangePassword(ctx context.Context, in ChangePasswordInput) (*session.Session, error)
	ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error

	SendVerificationCode(ctx context.Context, in SendCodeInput) (*CodeDispatch, error)
	VerifyCode(ctx context.Context, identifier, code string) (*VerifyResult, error)

	GetProfile(ctx context.Context, userID string) (*User, error)
	UpdateUserDetails(ctx context.Context, userID string, in UpdateUserDetailsInput) (*User, error)
}

// CodeIssuer issues verification codes and reset tokens.
type CodeIssuer interface {
	IssueCode(ctx context.Context, req token.CodeRequest) (*token.Issued, error)
	IssueResetToken(ctx context.Context, req token.ResetRequest) (*token.Issued, error)
}

// TokenVerifier consumes verification codes and reset tokens.
type TokenVerifier interface {
	VerifyCode(ctx context.Context, identifier string, purpose token.Purpose, code string) (*token.Code, error)
	ConsumeResetToken(ctx context.Context, secret string) (*token.ResetToken, error)
}

// SessionManager issues, refreshes and revokes sessions.
type SessionManager interface {
	Issue(userID, role string, kind session.Kind) (*session.Session, error)
	IssueSince(userID, role string, kind session.Kind, since time.Time) (*session.Session, error)
	Refresh(ctx context.Context, sessionToken string) (*session.Session, error)
	Revoke(ctx context.Context, claims *session.Claims) error
	RevokeUser(ctx context.Context, userID string) (time.Time, error)
}

type service struct {
	repo         Repository
	issuer       CodeIssuer
	verifier     TokenVerifier
	sessions     SessionManager
	logger       *slog.Logger
	storeTimeout time.Duration
	codeTTL      time.Duration
	now          func() time.Time
}

// Config holds the dependencies for the user service.
type Config struct {
	Repo     Repository
	Issuer   CodeIssuer
	Verifier TokenVerifier
	Sessions SessionManager
	Logger   *slog.Logger

	// StoreTimeout bounds each credential store call.
	StoreTimeout time.Duration
	// CodeTTL is reported for codes that are silently not issued.
	CodeTTL time.Duration
}

func NewService(cfg *Config) Service {
	s := &service{
		repo:         cfg.Repo,
		issuer:       cfg.Issuer,
		verifier:     cfg.Verifier,
		sessions:     cfg.Sessions,
		logger:       cfg.Logger,
		storeTimeout: cfg.StoreTimeout,
		codeTTL:      cfg.CodeTTL,
		now:          time.Now,
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = 3 * time.Second
	}
	if s.codeTTL <= 0 {
		s.codeTTL = 10 * time.Minute
	}
	return s
}
