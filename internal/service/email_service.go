package service

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// EmailSender delivers a rendered notification email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// ResendEmailSender sends email through the Resend API.
type ResendEmailSender struct {
	client *resend.Client
	from   string
}

// NewResendEmailSender creates a sender with the given API key and from
// address.
func NewResendEmailSender(apiKey, from string) *ResendEmailSender {
	return &ResendEmailSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendEmailSender) Send(ctx context.Context, to, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("FixHub <%s>", s.from),
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	return err
}

// LogEmailSender records outgoing email without delivering it. Used when
// notifications are disabled or no API key is configured.
type LogEmailSender struct {
	logger *zap.Logger
}

// NewLogEmailSender creates a sender that only logs.
func NewLogEmailSender(logger *zap.Logger) *LogEmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("email delivery skipped",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
