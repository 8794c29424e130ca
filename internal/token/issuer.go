package token

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Issued is the result of issuing a secret. DeliveryErr is set when the
// secret was stored but could not be delivered; the secret stays valid.
type Issued struct {
	Secret      string
	ExpiresAt   time.Time
	DeliveryErr error
}

// CodeRequest describes a numeric code to issue.
type CodeRequest struct {
	Identifier string
	Purpose    Purpose
	Channel    Channel
	UserID     *string
	Recipient  string

	// Destination overrides Identifier as the delivery address.
	Destination string
}

// ResetRequest describes a password reset token to issue.
type ResetRequest struct {
	UserID    string
	Email     string
	Recipient string
}

// Issuer creates codes and reset tokens, supersedes earlier ones for the same
// scope and hands the new secret to a Deliverer.
type Issuer struct {
	store     Store
	throttle  Throttle
	deliverer Deliverer
	cfg       Config
	now       func() time.Time
}

func NewIssuer(store Store, throttle Throttle, deliverer Deliverer, cfg Config) *Issuer {
	return &Issuer{
		store:     store,
		throttle:  throttle,
		deliverer: deliverer,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// IssueCode generates a numeric code for (identifier, purpose). Any code
// previously issued for the same pair stops verifying.
func (i *Issuer) IssueCode(ctx context.Context, req CodeRequest) (*Issued, error) {
	if req.Identifier == "" || !req.Purpose.Valid() {
		return nil, errors.New("token: identifier and a valid purpose are required")
	}
	throttleKey := string(req.Purpose) + ":" + req.Identifier
	if err := i.allow(ctx, throttleKey); err != nil {
		return nil, err
	}

	code, err := generateNumericCode(i.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := i.now()
	rec := &Code{
		UserID:      req.UserID,
		Identifier:  req.Identifier,
		Purpose:     req.Purpose,
		Channel:     req.Channel,
		CodeHash:    hashCode(i.cfg.Pepper, req.Identifier, req.Purpose, code),
		MaxAttempts: i.cfg.MaxAttempts,
		ExpiresAt:   now.Add(i.cfg.CodeTTL),
		CreatedAt:   now,
	}

	storeCtx, cancel := context.WithTimeout(ctx, i.cfg.StoreTimeout)
	defer cancel()
	if err := i.store.ReplaceCode(storeCtx, rec); err != nil {
		i.release(ctx, throttleKey)
		return nil, fmt.Errorf("store code: %w", err)
	}

	dest := req.Destination
	if dest == "" {
		dest = req.Identifier
	}
	issued := &Issued{Secret: code, ExpiresAt: rec.ExpiresAt}
	issued.DeliveryErr = i.deliver(ctx, Delivery{
		Channel:     req.Channel,
		Destination: dest,
		Recipient:   req.Recipient,
		Purpose:     req.Purpose,
		Secret:      code,
		ExpiresAt:   rec.ExpiresAt,
	})
	return issued, nil
}

// IssueResetToken generates an opaque password reset token for the user and
// emails a reset link. Earlier reset tokens of the user stop verifying.
func (i *Issuer) IssueResetToken(ctx context.Context, req ResetRequest) (*Issued, error) {
	if req.UserID == "" {
		return nil, errors.New("token: user id is required")
	}
	throttleKey := string(PurposePasswordReset) + ":" + req.UserID
	if err := i.allow(ctx, throttleKey); err != nil {
		return nil, err
	}

	secret, err := generateOpaqueToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := i.now()
	rec := &ResetToken{
		UserID:    req.UserID,
		TokenHash: hashToken(secret),
		ExpiresAt: now.Add(i.cfg.ResetTTL),
		CreatedAt: now,
	}

	storeCtx, cancel := context.WithTimeout(ctx, i.cfg.StoreTimeout)
	defer cancel()
	if err := i.store.ReplaceResetToken(storeCtx, rec); err != nil {
		i.release(ctx, throttleKey)
		return nil, fmt.Errorf("store reset token: %w", err)
	}

	issued := &Issued{Secret: secret, ExpiresAt: rec.ExpiresAt}
	issued.DeliveryErr = i.deliver(ctx, Delivery{
		Channel:     ChannelEmail,
		Destination: req.Email,
		Recipient:   req.Recipient,
		Purpose:     PurposePasswordReset,
		Secret:      secret,
		Link:        i.resetLink(secret),
		ExpiresAt:   rec.ExpiresAt,
	})
	return issued, nil
}

func (i *Issuer) allow(ctx context.Context, key string) error {
	if i.throttle == nil {
		return nil
	}
	ok, err := i.throttle.Allow(ctx, key, i.cfg.ResendCooldown)
	if err != nil {
		return fmt.Errorf("resend throttle: %w: %w", ErrUnavailable, err)
	}
	if !ok {
		return ErrResendTooSoon
	}
	return nil
}

// release frees a cooldown slot claimed for an issuance that stored nothing.
// A failed release only delays the next request until the window passes.
func (i *Issuer) release(ctx context.Context, key string) {
	if i.throttle == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.cfg.StoreTimeout)
	defer cancel()
	_ = i.throttle.Release(rctx, key)
}

func (i *Issuer) deliver(ctx context.Context, d Delivery) error {
	if i.deliverer == nil || d.Destination == "" {
		return nil
	}
	deliverCtx, cancel := context.WithTimeout(ctx, i.cfg.DeliveryTimeout)
	defer cancel()
	if err := i.deliverer.Deliver(deliverCtx, d); err != nil {
		return fmt.Errorf("deliver %s via %s: %w", d.Purpose, d.Channel, err)
	}
	return nil
}

func (i *Issuer) resetLink(secret string) string {
	if i.cfg.ResetURL == "" {
		return ""
	}
	return i.cfg.ResetURL + "?token=" + url.QueryEscape(secret)
}
