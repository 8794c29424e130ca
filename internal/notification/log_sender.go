package notification

import (
	"context"
	"log/slog"
)

// logSender writes messages to the log instead of delivering them. It stands
// in for SMTP or SNS in development.
type logSender struct {
	log *slog.Logger
}

func NewLogEmailSender(log *slog.Logger) emailSender { return &logSender{log: log} }

func NewLogSMSSender(log *slog.Logger) smsSender { return &logSmsSender{logSender{log: log}} }

func (s *logSender) Send(_ context.Context, to, subject, _, textBody string) error {
	s.log.Info("DUMMY SEND: email would be sent", "to", to, "subject", subject, "body", textBody)
	return nil
}

func (s *logSender) Backend() string { return "log" }

type logSmsSender struct{ logSender }

func (s *logSmsSender) Send(_ context.Context, to, message string) error {
	s.log.Info("DUMMY SEND: SMS would be sent", "to", to, "message", message)
	return nil
}
