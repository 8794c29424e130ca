package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Content holds the rendered message for each channel. A notification can
// carry content for several channels at once.
type Content struct {
	EmailSubject  string
	EmailHTMLBody string
	EmailTextBody string
	SMSText       string
}

// Notification is the universal object used to send any notification.
type Notification struct {
	Recipient string // email address or E.164 phone number
	Channels  []Channel
	Content   Content
}

type emailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
	Backend() string
}

type smsSender interface {
	Send(ctx context.Context, to, message string) error
	Backend() string
}

// Service is the main interface for the notification system.
type Service interface {
	// Send delivers n on every requested channel and returns once all of them
	// finished. The error joins the failures of individual channels.
	Send(ctx context.Context, n Notification) error
	// Backends names the sender configured per channel.
	Backends() map[Channel]string
}

type service struct {
	log         *slog.Logger
	emailSender emailSender
	smsSender   smsSender
}

func NewService(log *slog.Logger, emailSender emailSender, smsSender smsSender) Service {
	return &service{
		log:         log,
		emailSender: emailSender,
		smsSender:   smsSender,
	}
}

func (s *service) Send(ctx context.Context, n Notification) error {
	if len(n.Channels) == 0 {
		return errors.New("notification: no channel requested")
	}

	errs := make([]error, len(n.Channels))
	var g errgroup.Group
	for i, ch := range n.Channels {
		g.Go(func() error {
			errs[i] = s.send(ctx, ch, n)
			if errs[i] != nil {
				s.log.Error("failed to send notification", "channel", ch, "recipient", n.Recipient, "error", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (s *service) send(ctx context.Context, ch Channel, n Notification) error {
	switch ch {
	case ChannelEmail:
		if s.emailSender == nil {
			return fmt.Errorf("%s: no sender configured", ch)
		}
		s.log.Info("dispatching email notification", "recipient", n.Recipient)
		if err := s.emailSender.Send(ctx, n.Recipient, n.Content.EmailSubject, n.Content.EmailHTMLBody, n.Content.EmailTextBody); err != nil {
			return fmt.Errorf("%s: %w", ch, err)
		}
	case ChannelSMS:
		if s.smsSender == nil {
			return fmt.Errorf("%s: no sender configured", ch)
		}
		s.log.Info("dispatching sms notification", "recipient", n.Recipient)
		if err := s.smsSender.Send(ctx, n.Recipient, n.Content.SMSText); err != nil {
			return fmt.Errorf("%s: %w", ch, err)
		}
	default:
		return fmt.Errorf("unsupported notification channel %q", ch)
	}
	return nil
}

func (s *service) Backends() map[Channel]string {
	out := map[Channel]string{ChannelEmail: "none", ChannelSMS: "none"}
	if s.emailSender != nil {
		out[ChannelEmail] = s.emailSender.Backend()
	}
	if s.smsSender != nil {
		out[ChannelSMS] = s.smsSender.Backend()
	}
	return out
}
