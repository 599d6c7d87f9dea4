package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer delivers HTML mail through a gomail dialer. Each Send opens its
// own connection.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("mail not sent, SMTP disabled", "to", to, "subject", subject, "body", body)
	return nil
}

func OTPEmail(code, purpose string, ttl time.Duration) (subject, body string) {
	switch purpose {
	case "start":
		subject = "Your repair start code"
	case "complete":
		subject = "Your repair completion code"
	default:
		subject = "Your RepairHub login code"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Your one-time code is <strong>%s</strong>.</p>", code)
	fmt.Fprintf(&b, "<p>It expires in %d minutes. Do not share it with anyone.</p>", int(ttl.Minutes()))
	if purpose == "start" || purpose == "complete" {
		b.WriteString("<p>Give this code to the technician only when they are with you.</p>")
	}
	return subject, b.String()
}

func ReminderEmail(name, service string, at time.Time) (subject, body string) {
	subject = fmt.Sprintf("Reminder: %s at %s", service, at.Format("15:04"))
	body = fmt.Sprintf(`<p>Hi %s,</p>
<p>This is a reminder that your <strong>%s</strong> appointment starts at %s.</p>
<p>Reply to this email if you need to reschedule.</p>`, name, service, at.Format("Mon 2 Jan 15:04"))
	return subject, body
}
