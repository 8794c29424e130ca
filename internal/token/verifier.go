package token

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Verifier accepts a secret at most once. Acceptance and consumption are one
// conditional store update, so concurrent verifications of the same secret
// produce exactly one success.
type Verifier struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func NewVerifier(store Store, cfg Config) *Verifier {
	return &Verifier{store: store, cfg: cfg.withDefaults(), now: time.Now}
}

// VerifyCode consumes the code issued for (identifier, purpose) and returns
// the consumed record. A code is accepted only while now < ExpiresAt.
//
// Rejections match ErrInvalidOrExpired; the wrapped reason is for logs only.
func (v *Verifier) VerifyCode(ctx context.Context, identifier string, purpose Purpose, code string) (*Code, error) {
	if identifier == "" || code == "" || !purpose.Valid() {
		return nil, ErrNoMatch
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.StoreTimeout)
	defer cancel()

	now := v.now()
	hash := hashCode(v.cfg.Pepper, identifier, purpose, code)

	rec, err := v.store.ConsumeCode(ctx, identifier, purpose, hash, now)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("consume code: %w", err)
	}

	if err := v.store.RecordFailedAttempt(ctx, identifier, purpose, now); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("record failed attempt: %w", err)
	}

	found, err := v.store.FindCode(ctx, identifier, purpose, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("find code: %w", err)
	}
	return nil, classify(found.ConsumedAt, found.ExpiresAt, found.Attempts >= found.MaxAttempts, now)
}

// ConsumeResetToken consumes a password reset token and returns its record.
func (v *Verifier) ConsumeResetToken(ctx context.Context, secret string) (*ResetToken, error) {
	if secret == "" {
		return nil, ErrNoMatch
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.StoreTimeout)
	defer cancel()

	now := v.now()
	hash := hashToken(secret)

	rec, err := v.store.ConsumeResetToken(ctx, hash, now)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}

	found, err := v.store.FindResetToken(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return nil, classify(found.ConsumedAt, found.ExpiresAt, false, now)
}

func classify(consumedAt *time.Time, expiresAt time.Time, exhausted bool, now time.Time) error {
	switch {
	case consumedAt != nil:
		return ErrAlreadyConsumed
	case !now.Before(expiresAt):
		return ErrExpired
	case exhausted:
		return ErrAttemptsExhausted
	default:
		return ErrNoMatch
	}
}
