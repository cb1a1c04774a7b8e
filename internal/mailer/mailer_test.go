package mailer

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/server/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestSendVerification(t *testing.T) {
	s := &fakeSender{}
	m := NewMailer("no-reply@example.com", s)

	err := m.SendVerification(notify.VerificationMessage{
		Email:     "jane@example.com",
		URL:       "http://x.test/verify?token=abc",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)

	msg := s.sent[0]
	assert.Equal(t, []string{"no-reply@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"jane@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{verifySubject}, msg.GetHeader("Subject"))

	var raw bytes.Buffer
	_, err = msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "token=3Dabc")
	assert.Contains(t, raw.String(), "text/plain")
}

func TestSendVerification_Rejects(t *testing.T) {
	m := NewMailer("no-reply@example.com", &fakeSender{})

	assert.Error(t, m.SendVerification(notify.VerificationMessage{URL: "http://x"}))
	assert.Error(t, m.SendVerification(notify.VerificationMessage{Email: "a@b.c"}))
}

func TestSendVerification_SenderError(t *testing.T) {
	boom := errors.New("535 auth failed")
	m := NewMailer("no-reply@example.com", &fakeSender{err: boom})

	err := m.SendVerification(notify.VerificationMessage{Email: "a@b.c", URL: "http://x"})
	assert.ErrorIs(t, err, boom)
}

func TestNewDialer(t *testing.T) {
	d := NewDialer(&Config{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p"})
	assert.Equal(t, "smtp.example.com", d.Host)
	assert.Equal(t, 2525, d.Port)
	assert.Equal(t, "u", d.Username)
}
