package services

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/authgate/backend/internal/config"
	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/pkg/logger"
	"github.com/wneessen/go-mail"
)

const resetSubject = "Password Reset Request"

// Notifier delivers the reset link to the account owner.
type Notifier interface {
	SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error
}

type resetMessageData struct {
	Name     string
	ResetURL string
	Validity string
}

var resetHTML = htmltemplate.Must(htmltemplate.New("reset_html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; line-height: 1.5;">
  <p>Hello {{.Name}},</p>
  <p>We received a request to reset the password for your account.</p>
  <p><a href="{{.ResetURL}}">Reset your password</a></p>
  <p>This link is valid for {{.Validity}} and can be used once.</p>
  <p>If you did not request a reset you can ignore this email.</p>
</body>
</html>
`))

var resetText = texttemplate.Must(texttemplate.New("reset_text").Parse(`Hello {{.Name}},

We received a request to reset the password for your account.

Reset your password: {{.ResetURL}}

This link is valid for {{.Validity}} and can be used once.

If you did not request a reset you can ignore this email.
`))

func displayName(user *models.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return user.Username
	}
	return name
}

// buildResetMessage renders a multipart/alternative message with plain text
// and HTML parts.
func buildResetMessage(from string, user *models.User, resetURL string, validity time.Duration) (*mail.Msg, error) {
	data := resetMessageData{
		Name:     displayName(user),
		ResetURL: resetURL,
		Validity: formatValidity(validity),
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(user.Email); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(resetSubject)
	msg.SetDate()
	if err := msg.SetBodyTextTemplate(resetText, data); err != nil {
		return nil, err
	}
	if err := msg.AddAlternativeHTMLTemplate(resetHTML, data); err != nil {
		return nil, err
	}
	return msg, nil
}

func formatValidity(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return strconv.Itoa(hours) + " hours"
	}
	return d.String()
}

type SMTPNotifier struct {
	cfg      config.SMTPConfig
	validity time.Duration
}

func NewSMTPNotifier(cfg config.SMTPConfig, validity time.Duration) *SMTPNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &SMTPNotifier{cfg: cfg, validity: validity}
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error {
	msg, err := buildResetMessage(n.cfg.From, user, resetURL, n.validity)
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}

	client, err := mail.NewClient(n.cfg.Host, n.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// clientOptions upgrades to TLS when the server offers STARTTLS and
// authenticates with PLAIN when a username is configured.
func (n *SMTPNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTimeout(n.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	return opts
}

// LogNotifier writes the reset link to the log instead of sending mail.
// It is meant for local development only.
type LogNotifier struct{}

func (LogNotifier) SendPasswordReset(_ context.Context, user *models.User, resetURL string) error {
	logger.InfoWithUser(user.ID.String(), "password_reset_email_logged", map[string]interface{}{
		"email":     logger.MaskEmail(user.Email),
		"reset_url": resetURL,
	})
	return nil
}
