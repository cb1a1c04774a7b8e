// Package mailer turns queued verification messages into emails.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/server/notify"
	"gopkg.in/gomail.v2"
)

const verifySubject = "Verify your email address"

var verifyHTML = template.Must(template.New("verify").Parse(`<p>Hello,</p>
<p>Please confirm your email address by opening the link below:</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
<p>The link was issued at {{.Issued}} and expires shortly. You can request a new one at any time.</p>`))

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer composes verification emails.
type Mailer struct {
	from   string
	sender Sender
}

func NewMailer(from string, sender Sender) *Mailer {
	return &Mailer{from: from, sender: sender}
}

// NewDialer builds the SMTP dialer for cfg.
func NewDialer(cfg *Config) *gomail.Dialer {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

// SendVerification emails the verification link in msg.
func (m *Mailer) SendVerification(msg notify.VerificationMessage) error {
	if msg.Email == "" {
		return fmt.Errorf("no recipients specified")
	}
	if msg.URL == "" {
		return fmt.Errorf("verification message for %s has no link", msg.Email)
	}

	var html bytes.Buffer
	err := verifyHTML.Execute(&html, struct {
		URL    string
		Issued string
	}{URL: msg.URL, Issued: msg.Timestamp.UTC().Format(time.RFC1123)})
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}

	email := gomail.NewMessage()
	email.SetHeader("From", m.from)
	email.SetHeader("To", msg.Email)
	email.SetHeader("Subject", verifySubject)
	email.SetBody("text/html", html.String())
	email.AddAlternative("text/plain", "Confirm your email address: "+msg.URL)

	return m.sender.DialAndSend(email)
}
