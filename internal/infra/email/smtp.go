package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
	"github.com/avelko/account-iam/internal/infra/config"
	"github.com/avelko/account-iam/internal/infra/logger"
)

// Known notification templates.
const (
	TemplatePasswordResetCode = "password_reset_code"
	TemplatePasswordChanged   = "password_changed"
)

// SMTPNotifier delivers account notifications over SMTP.
type SMTPNotifier struct {
	cfg    config.SMTPSettings
	logger *zap.Logger
}

func NewSMTPNotifier(cfg config.SMTPSettings, log *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: log}
}

// Send renders the named template and delivers it to the account's email.
// A delivery failure is reported through the bool so callers can continue.
func (n *SMTPNotifier) Send(ctx context.Context, account domain.Account, template string, data map[string]string) (bool, error) {
	subject, body, err := renderTemplate(template, data)
	if err != nil {
		return false, err
	}

	m := mail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", account.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := mail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.Username, n.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: n.cfg.Host}

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			n.logger.Warn("smtp send failed",
				zap.String("template", template),
				zap.String("to", logger.MaskEmail(account.Email)),
				zap.Error(err),
			)
			return false, nil
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}

	n.logger.Info("notification sent",
		zap.String("template", template),
		zap.String("to", logger.MaskEmail(account.Email)),
	)
	return true, nil
}

func renderTemplate(template string, data map[string]string) (subject, body string, err error) {
	switch template {
	case TemplatePasswordResetCode:
		subject = "Your password reset code"
		body = fmt.Sprintf(
			"A password reset was requested for your account.\n\n"+
				"Your reset code is: %s\n\n"+
				"The code expires in %s. If you did not request a reset, you can ignore this message.",
			data["code"], data["expires_in"],
		)
	case TemplatePasswordChanged:
		subject = "Your password was changed"
		body = "The password for your account was just changed.\n\n" +
			"If this was not you, request a password reset immediately."
	default:
		return "", "", fmt.Errorf("unknown notification template %q", template)
	}

	return subject, strings.TrimSpace(body), nil
}

var _ port.Notifier = (*SMTPNotifier)(nil)

// LogNotifier writes notifications to the log instead of delivering them.
// Selected when no SMTP host is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Send(_ context.Context, account domain.Account, template string, data map[string]string) (bool, error) {
	if _, _, err := renderTemplate(template, data); err != nil {
		return false, err
	}

	n.logger.Info("notification logged",
		zap.String("template", template),
		zap.String("to", logger.MaskEmail(account.Email)),
		zap.Any("data", data),
	)
	return true, nil
}

var _ port.Notifier = (*LogNotifier)(nil)
