package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/env"
)

func testMailer(send SendFunc) *SMTPMailer {
	return &SMTPMailer{host: "smtp.example.com", port: "587", username: "u", password: "p", sender: "relay@example.com", send: send}
}

func TestNewSMTPMailerFromEnv(t *testing.T) {
	env.Env = map[string]string{}
	t.Setenv("SMTP_HOST", "")
	assert.Nil(t, NewSMTPMailerFromEnv())

	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_SENDER", "")
	m := NewSMTPMailerFromEnv()
	require.NotNil(t, m)
	assert.Equal(t, "587", m.port)
	assert.Equal(t, "no-reply@localhost", m.sender)
}

func TestSendInvite(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg string
	m := testMailer(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	})

	require.NoError(t, m.SendInvite(context.Background(), "alice@example.com", "https://discord.gg/abc"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: alice@example.com")
	assert.Contains(t, gotMsg, "https://discord.gg/abc")
}

func TestSendInvite_Failures(t *testing.T) {
	m := testMailer(func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay denied") })
	assert.EqualError(t, m.SendInvite(context.Background(), "alice@example.com", "u"), "relay denied")

	assert.Error(t, m.SendInvite(context.Background(), "not-an-email", "u"))

	hung := testMailer(func(string, smtp.Auth, string, []string, []byte) error {
		time.Sleep(time.Second)
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hung.SendInvite(ctx, "alice@example.com", "u"), context.DeadlineExceeded)
}
