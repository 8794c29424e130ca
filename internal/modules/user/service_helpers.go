package user

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/heartguard/heartguard-api/internal/database"
	"github.com/heartguard/heartguard-api/internal/session"
	"github.com/heartguard/heartguard-api/internal/token"
	"github.com/heartguard/heartguard-api/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// dummyHash is compared against when no user matched, so a login for an
// unknown email costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	h, _ := bcrypt.GenerateFromPassword([]byte("heartguard-no-such-user"), bcrypt.DefaultCost)
	return string(h)
})

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// samePhone compares phone numbers by their digits only.
func samePhone(a, b string) bool {
	da := strings.TrimPrefix(validation.NormalizePhone(a), "+")
	db := strings.TrimPrefix(validation.NormalizePhone(b), "+")
	return da != "" && da == db
}

func validatePassword(field, password string) error {
	if len(password) < minPasswordLength {
		return validation.Field(field, "must be at least 8 characters")
	}
	return nil
}

// storeCtx bounds a credential store call.
func (s *service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeErr maps a repository error to the facade taxonomy. Domain errors
// returned by the repository pass through.
func (s *service) storeErr(op string, err error) error {
	var de *DomainError
	switch {
	case errors.As(err, &de):
		return de
	case database.IsUnavailable(err):
		s.logger.Error("credential store unavailable", "op", op, "error", err)
		return ErrServiceUnavailable.WithCause(err)
	default:
		s.logger.Error("credential store failed", "op", op, "error", err)
		return ErrInternal.WithCause(err)
	}
}

// tokenErr maps issuer and verifier errors. Every rejection reason collapses
// into ErrInvalidOrExpiredToken.
func (s *service) tokenErr(op string, err error) error {
	switch {
	case errors.Is(err, token.ErrInvalidOrExpired):
		s.logger.Info("token rejected", "op", op, "reason", err)
		return ErrInvalidOrExpiredToken.WithCause(err)
	case errors.Is(err, token.ErrResendTooSoon):
		return ErrResendTooSoon
	case errors.Is(err, token.ErrUnavailable), database.IsUnavailable(err):
		s.logger.Error("token store unavailable", "op", op, "error", err)
		return ErrServiceUnavailable.WithCause(err)
	default:
		s.logger.Error("token operation failed", "op", op, "error", err)
		return ErrInternal.WithCause(err)
	}
}

// sessionErr maps session manager errors.
func (s *service) sessionErr(op string, err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidSession):
		return ErrUnauthorized.WithCause(err)
	case errors.Is(err, session.ErrUnavailable):
		s.logger.Error("session store unavailable", "op", op, "error", err)
		return ErrServiceUnavailable.WithCause(err)
	default:
		s.logger.Error("session operation failed", "op", op, "error", err)
		return ErrInternal.WithCause(err)
	}
}

// setPassword stores a new password and ends every earlier session of the
// user. It returns the revocation cutoff; a session for the caller must be
// issued no earlier than it.
func (s *service) setPassword(ctx context.Context, userID, newPassword string) (time.Time, error) {
	hash, err := hashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return time.Time{}, ErrInternal.WithCause(err)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.repo.UpdatePassword(sctx, userID, hash); err != nil {
		return time.Time{}, s.storeErr("update password", err)
	}

	cutoff, err := s.sessions.RevokeUser(ctx, userID)
	if err != nil {
		// The password is already changed; earlier sessions stay valid until
		// they expire.
		s.logger.Error("failed to revoke sessions after password change", "user_id", userID, "error", err)
	}
	return cutoff, nil
}
