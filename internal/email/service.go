// Package email delivers partnership invites.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/dentallab-api/internal/config"
	"github.com/jwalitptl/dentallab-api/pkg/circuitbreaker"
)

// Mailer sends the invite link issued by a lab to a prospective clinic.
type Mailer interface {
	SendInvite(ctx context.Context, to, labName, link string) error
}

const subjectInvite = "%s invited you to connect"

var inviteTemplate = template.Must(template.New("invite").Parse(`<!DOCTYPE html>
<html>
<body>
<p>{{.LabName}} invited your clinic to send and track lab jobs online.</p>
<p><a href="{{.Link}}">Accept the invitation</a></p>
<p>The link expires in 7 days and can be used once.</p>
</body>
</html>`))

type inviteData struct {
	LabName string
	Link    string
}

func renderInvite(labName, link string) (string, error) {
	var buf bytes.Buffer
	if err := inviteTemplate.Execute(&buf, inviteData{LabName: labName, Link: link}); err != nil {
		return "", fmt.Errorf("render invite: %w", err)
	}
	return buf.String(), nil
}

// SMTPMailer sends mail through a single SMTP relay.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	breaker *circuitbreaker.CircuitBreaker
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:    cfg.From,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "smtp", MaxFailures: 3, Timeout: time.Minute}),
	}
}

// New returns the SMTP mailer when enabled and a no-op otherwise.
func New(cfg config.SMTPConfig) Mailer {
	if !cfg.Enabled {
		return NoopMailer{}
	}
	return NewSMTPMailer(cfg)
}

func (m *SMTPMailer) SendInvite(ctx context.Context, to, labName, link string) error {
	body, err := renderInvite(labName, link)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf(subjectInvite, labName))
	msg.SetBody("text/html", body)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.breaker.Execute(func() error { return m.dialer.DialAndSend(msg) }); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

type NoopMailer struct{}

func (NoopMailer) SendInvite(context.Context, string, string, string) error { return nil }
