package notification

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/heartguard/heartguard-api/internal/notification/templates"
	"github.com/heartguard/heartguard-api/internal/token"
)

// TokenDeliverer renders issued codes and reset links and sends them through
// the notification Service. It implements token.Deliverer.
type TokenDeliverer struct {
	svc    Service
	engine *templates.Engine
	log    *slog.Logger
	now    func() time.Time
}

func NewTokenDeliverer(svc Service, engine *templates.Engine, log *slog.Logger) *TokenDeliverer {
	return &TokenDeliverer{svc: svc, engine: engine, log: log, now: time.Now}
}

func (d *TokenDeliverer) Deliver(ctx context.Context, del token.Delivery) error {
	rendered, err := d.render(ctx, del)
	if err != nil {
		return err
	}

	n := Notification{
		Recipient: del.Destination,
		Content: Content{
			EmailSubject:  rendered.Subject,
			EmailHTMLBody: rendered.EmailHTML,
			EmailTextBody: rendered.EmailText,
			SMSText:       rendered.SMSText,
		},
	}
	switch del.Channel {
	case token.ChannelEmail:
		n.Channels = []Channel{ChannelEmail}
	case token.ChannelSMS:
		if rendered.SMSText == "" {
			return fmt.Errorf("no sms text for %s", del.Purpose)
		}
		n.Channels = []Channel{ChannelSMS}
	default:
		return fmt.Errorf("unsupported delivery channel %q", del.Channel)
	}

	d.log.Debug("delivering secret", "purpose", del.Purpose, "channel", del.Channel)
	return d.svc.Send(ctx, n)
}

func (d *TokenDeliverer) render(ctx context.Context, del token.Delivery) (templates.Rendered, error) {
	minutes := int(math.Ceil(del.ExpiresAt.Sub(d.now()).Minutes()))
	if minutes < 1 {
		minutes = 1
	}

	switch {
	case del.Purpose == token.PurposePasswordReset && del.Link != "":
		return templates.Render(ctx, d.engine, templates.PasswordResetLink, templates.PasswordResetLinkData{
			Name: del.Recipient, Link: del.Link, Minutes: minutes,
		})
	case del.Purpose == token.PurposePasswordReset:
		return templates.Render(ctx, d.engine, templates.PasswordResetCode, templates.PasswordResetCodeData{
			Name: del.Recipient, Code: del.Secret, Minutes: minutes,
		})
	default:
		return templates.Render(ctx, d.engine, templates.VerificationCode, templates.VerificationCodeData{
			Name: del.Recipient, Code: del.Secret, Minutes: minutes,
		})
	}
}
