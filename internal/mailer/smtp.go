package mailer

import (
	"context"
	"fmt"
	"log/slog"

	mail "github.com/go-mail/mail"

	"github.com/clubops/platform/internal"
)

// SMTPMailer delivers transactional mail over plain SMTP. Dialing happens
// per message; the volume here is one mail per step-up login, not a
// campaign.
type SMTPMailer struct {
	dialer *mail.Dialer
	from   string
	logger *slog.Logger
}

func NewSMTPMailer(cfg internal.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{
		dialer: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// SendOtpEmail sends the one-time verification code. The code is never
// logged.
func (m *SMTPMailer) SendOtpEmail(ctx context.Context, email, code string) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Your verification code")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your verification code is %s. It expires in a few minutes.\n\nIf you did not try to sign in, you can ignore this email.", code))
	msg.AddAlternative("text/html", fmt.Sprintf(
		"<p>Your verification code is <strong>%s</strong>. It expires in a few minutes.</p><p>If you did not try to sign in, you can ignore this email.</p>", code))

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			m.logger.ErrorContext(ctx, "otp email delivery failed", "to", email, "error", err)
			return fmt.Errorf("smtp send: %w", err)
		}
	}

	m.logger.DebugContext(ctx, "otp email sent", "to", email)
	return nil
}
