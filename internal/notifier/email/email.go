// Package email implements an SMTP-based email notifier
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"ballast/internal/core"
)

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	// send is smtp.SendMail, swappable in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

// Notify sends the event as a plain-text mail. net/smtp carries no
// context, so cancellation is only honored before dialing.
func (e *Email) Notify(ctx context.Context, event core.Event) error {
	if err := ctx.Err(); err != nil {
		return core.WrapError(core.ErrNotifierFailed, err)
	}

	subject := fmt.Sprintf("[ballast] %s", event.Title)
	msg := e.buildMessage(subject, formatEvent(event))

	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	if err := e.send(addr, auth, e.from, e.to, msg); err != nil {
		return core.WrapError(core.ErrNotifierFailed, fmt.Errorf("email: %w", err))
	}
	return nil
}

func formatEvent(event core.Event) string {
	var sb strings.Builder

	sb.WriteString(event.Title)
	sb.WriteString("\n\n")

	if event.Symbol != "" {
		sb.WriteString(fmt.Sprintf("Symbol: %s\n", event.Symbol))
	}
	if event.Type == core.EventTrade {
		sb.WriteString(fmt.Sprintf("Rule: %s\n", event.Tag))
		sb.WriteString(fmt.Sprintf("Notional: %.2f\n", event.Notional))
	}
	if event.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(event.Body)
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\nTime: %s\n", event.Time.Format("2006-01-02 15:04:05")))

	return sb.String()
}

func (e *Email) buildMessage(subject, body string) []byte {
	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		body,
	)
	return []byte(msg)
}
