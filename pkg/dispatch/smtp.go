package dispatch

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// SMTPChannel delivers notifications through a plain SMTP smarthost.
type SMTPChannel struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTPChannel creates an SMTP delivery channel. Username and password are
// optional; when set, PLAIN auth is used.
func NewSMTPChannel(host string, port int, username, password string) (*SMTPChannel, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}
	if port <= 0 {
		return nil, fmt.Errorf("smtp: port is required")
	}
	return &SMTPChannel{host: host, port: port, username: username, password: password}, nil
}

func (s *SMTPChannel) Name() string { return "smtp" }

func (s *SMTPChannel) Send(ctx context.Context, from, to, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("smtp: invalid from address %q: %w", from, err)
	}
	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("smtp: invalid to address %q: %w", to, err)
	}

	msg := buildMessage(fromAddr.Address, toAddr.Address, subject, body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))
	if err := smtp.SendMail(addr, auth, fromAddr.Address, []string{toAddr.Address}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", toAddr.Address, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(sb.String())
}
