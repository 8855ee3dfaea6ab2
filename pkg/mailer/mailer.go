// Package mailer delivers HTML email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/config"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"gopkg.in/gomail.v2"
)

const defaultTimeout = 20 * time.Second

// Message is a single outbound email.
type Message struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends messages through an SMTP relay.
type Mailer struct {
	dialer  dialer
	from    string
	timeout time.Duration
	logg    *logger.Logger
}

// New builds a mailer from SMTP settings.
func New(cfg config.SMTPConfig, logg *logger.Logger) (*Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, fmt.Errorf("smtp default sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Mailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.DefaultFrom,
		timeout: timeout,
		logg:    logg,
	}, nil
}

// Send delivers msg or returns a CodeDependency error. The SMTP exchange is
// bounded by the configured timeout and by ctx.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "email recipient required")
	}
	if msg.HTMLBody == "" && msg.TextBody == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email body required")
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(m.build(msg))
	}()

	logCtx := m.logg.WithFields(ctx, map[string]any{
		"operation":  "send_email",
		"recipients": len(msg.To),
	})

	select {
	case err := <-done:
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "smtp send failed")
		}
		m.logg.Info(logCtx, "email sent")
		return nil
	case <-ctx.Done():
		return pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "smtp send timed out")
	}
}

func (m *Mailer) build(msg Message) *gomail.Message {
	out := gomail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To...)
	out.SetHeader("Subject", msg.Subject)
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		out.SetBody("text/plain", msg.TextBody)
		out.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		out.SetBody("text/html", msg.HTMLBody)
	default:
		out.SetBody("text/plain", msg.TextBody)
	}
	return out
}
