// Package token issues and verifies single-use secrets: short numeric codes
// for contact verification and opaque tokens for password resets.
//
// Secrets are never persisted. Codes are stored as an HMAC bound to the
// identifier and purpose, reset tokens as a SHA-256 digest. A secret is
// accepted at most once, strictly before its expiry.
package token

import (
	"context"
	"errors"
	"time"
)

// Purpose scopes a code or token to one flow.
type Purpose string

const (
	PurposeEmailVerify   Purpose = "email_verify"
	PurposeSMSVerify     Purpose = "sms_verify"
	PurposePasswordReset Purpose = "password_reset"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailVerify, PurposeSMSVerify, PurposePasswordReset:
		return true
	}
	return false
}

// Channel is the out-of-band medium a secret is delivered through.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Code is a stored verification code record.
type Code struct {
	ID          string     `db:"id"`
	UserID      *string    `db:"user_id"`
	Identifier  string     `db:"identifier"`
	Purpose     Purpose    `db:"purpose"`
	Channel     Channel    `db:"channel"`
	CodeHash    string     `db:"code_hash"`
	Attempts    int        `db:"attempts"`
	MaxAttempts int        `db:"max_attempts"`
	ExpiresAt   time.Time  `db:"expires_at"`
	ConsumedAt  *time.Time `db:"consumed_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// ResetToken is a stored password reset token record.
type ResetToken struct {
	ID         string     `db:"id"`
	UserID     string     `db:"user_id"`
	TokenHash  string     `db:"token_hash"`
	ExpiresAt  time.Time  `db:"expires_at"`
	ConsumedAt *time.Time `db:"consumed_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Store persists codes and reset tokens.
//
// Replace* must mark every unconsumed record of the same scope consumed and
// insert the new one atomically. Consume* must be a single conditional
// update that only matches an unconsumed record with expires_at > now, and
// return ErrNotFound when nothing matched.
type Store interface {
	ReplaceCode(ctx context.Context, c *Code) error
	ConsumeCode(ctx context.Context, identifier string, purpose Purpose, codeHash string, now time.Time) (*Code, error)
	RecordFailedAttempt(ctx context.Context, identifier string, purpose Purpose, now time.Time) error
	FindCode(ctx context.Context, identifier string, purpose Purpose, codeHash string) (*Code, error)

	ReplaceResetToken(ctx context.Context, t *ResetToken) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error)
	FindResetToken(ctx context.Context, tokenHash string) (*ResetToken, error)
}

// Delivery is one secret on its way to the user.
type Delivery struct {
	Channel     Channel
	Destination string
	Recipient   string
	Purpose     Purpose
	Secret      string
	Link        string
	ExpiresAt   time.Time
}

// Deliverer sends a secret out of band (email, SMS).
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Throttle limits how often a secret can be issued for the same scope.
type Throttle interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Config tunes issuance and verification.
type Config struct {
	CodeTTL         time.Duration
	ResetTTL        time.Duration
	CodeLength      int
	MaxAttempts     int
	ResendCooldown  time.Duration
	Pepper          string
	ResetURL        string
	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CodeTTL <= 0 {
		c.CodeTTL = 10 * time.Minute
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = time.Hour
	}
	if c.CodeLength <= 0 {
		c.CodeLength = 6
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 10 * time.Second
	}
	return c
}

var (
	// ErrNotFound is returned by a Store when no record matched.
	ErrNotFound = errors.New("token: record not found")

	// ErrResendTooSoon is returned when a secret was issued for the same scope
	// within the resend cooldown.
	ErrResendTooSoon = errors.New("token: resend requested too soon")

	// ErrUnavailable wraps failures of the resend throttle backend.
	ErrUnavailable = errors.New("token: throttle unavailable")

	// ErrInvalidOrExpired is the only rejection callers should surface.
	// Every rejection below matches it with errors.Is.
	ErrInvalidOrExpired = errors.New("token: invalid or expired")

	ErrNoMatch           error = &rejection{reason: "no matching secret"}
	ErrExpired           error = &rejection{reason: "expired"}
	ErrAlreadyConsumed   error = &rejection{reason: "already consumed"}
	ErrAttemptsExhausted error = &rejection{reason: "attempts exhausted"}
)

type rejection struct {
	reason string
}

func (r *rejection) Error() string { return "token: rejected: " + r.reason }

func (r *rejection) Is(target error) bool { return target == ErrInvalidOrExpired }
