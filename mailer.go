package auth

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer delivers the password reset side-channel message. Delivery is
// synchronous; a returned error means the caller must compensate, not
// retry.
type Mailer interface {
	SendResetEmail(ctx context.Context, address, token string) error
}

// SMTPConfig carries mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers reset emails through a plain SMTP relay using
// STARTTLS on the standard submission port.
type SMTPMailer struct {
	cfg         SMTPConfig
	frontendURL string
	logger      Logger
}

func NewSMTPMailer(cfg SMTPConfig, frontendURL string, logger Logger) *SMTPMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &SMTPMailer{
		cfg:         cfg,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// SendResetEmail composes and delivers the plain-text reset message.
func (m *SMTPMailer) SendResetEmail(ctx context.Context, address, token string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	link := ResetLink(m.frontendURL, token)

	subject := "Password Reset Request"
	body := strings.Join([]string{
		"Hello,",
		"",
		"We received a request to set the password for your account.",
		"Click the link below to choose a new password:",
		"",
		"  " + link,
		"",
		"The link is valid for 1 hour and can be used once.",
		"If you did not request this, you can safely ignore this message.",
	}, "\r\n")

	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		m.cfg.From, address, subject,
	)
	msg := []byte(headers + body + "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	return smtp.SendMail(addr, auth, m.cfg.From, []string{address}, msg)
}

// ResetLink renders the reset URL handed to the invitee.
func ResetLink(frontendURL, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(frontendURL, "/"), token)
}

// logMailer prints reset links instead of sending mail. Used when no
// relay host is configured, for local development.
type logMailer struct {
	frontendURL string
	logger      Logger
}

func NewLogMailer(frontendURL string, logger Logger) Mailer {
	if logger == nil {
		logger = defLogger{}
	}
	return logMailer{frontendURL: frontendURL, logger: logger}
}

func (m logMailer) SendResetEmail(_ context.Context, address, token string) error {
	m.logger.Info("reset link for %s: %s", address, ResetLink(m.frontendURL, token))
	return nil
}
