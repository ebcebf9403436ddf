package mail

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/env"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers invite links to subjects by email.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	sender   string
	send     SendFunc
}

// NewSMTPMailerFromEnv returns nil when SMTP_HOST is not configured.
func NewSMTPMailerFromEnv() *SMTPMailer {
	host := strings.TrimSpace(env.GetEnv("SMTP_HOST", ""))
	if host == "" {
		log.Info("[Mail] SMTP_HOST not set, invites are not emailed")
		return nil
	}
	sender := env.GetEnv("SMTP_SENDER", "")
	if sender == "" {
		sender = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", sender)
	}
	return &SMTPMailer{
		host:     host,
		port:     env.GetEnv("SMTP_PORT", "587"),
		username: env.GetEnv("SMTP_USERNAME", ""),
		password: env.GetEnv("SMTP_PASSWORD", ""),
		sender:   sender,
		send:     smtp.SendMail,
	}
}

// SendInvite mails a one-time invite link to the paying subject. Subjects
// that are not email addresses are skipped.
func (m *SMTPMailer) SendInvite(ctx context.Context, to, inviteURL string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("subject %q is not an email address", to)
	}
	body := fmt.Sprintf(`<p>Thanks for your payment.</p><p>Your personal Discord invite (single use): <a href="%s">%s</a></p>`,
		html.EscapeString(inviteURL), html.EscapeString(inviteURL))
	return m.sendMail(ctx, to, "Your community access", body)
}

func (m *SMTPMailer) sendMail(ctx context.Context, to, subject, body string) error {
	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	// net/smtp takes no context; abandon the wait when ctx expires
	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, m.sender, []string{to}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			log.Errorf("[Mail] SMTP send error: %v", err)
			return err
		}
		log.Infof("[Mail] Invite sent to %s via %s", to, addr)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
