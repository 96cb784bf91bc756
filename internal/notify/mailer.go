package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/hookline/tow-bookings/pkg/config"
	"github.com/hookline/tow-bookings/pkg/logger"
)

// Sender delivers a single email and returns the provider message id when
// one exists.
type Sender interface {
	Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error)
}

// NewSender picks the email backend from config. Unknown providers fall
// back to the log backend so a misconfigured worker never drops mail
// silently.
func NewSender(cfg config.EmailConfig) Sender {
	switch cfg.Provider {
	case "mailersend":
		return NewMailerSendMailer(cfg)
	case "smtp":
		return NewSMTPMailer(cfg)
	default:
		return &LogMailer{}
	}
}

// MailerSendMailer sends through the MailerSend API.
type MailerSendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSendMailer(cfg config.EmailConfig) *MailerSendMailer {
	return &MailerSendMailer{
		client: mailersend.NewMailersend(cfg.MailerSendKey),
		from: mailersend.From{
			Name:  cfg.FromName,
			Email: cfg.From,
		},
	}
}

func (m *MailerSendMailer) Send(ctx context.Context, toEmail, toName, subject, text, html string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	// MailerSend uses X-Message-Id
	return res.Header.Get("X-Message-Id"), nil
}

// LogMailer writes the message to the log instead of sending it. Default
// backend for local dev, where no mail credentials exist.
type LogMailer struct{}

func (l *LogMailer) Send(ctx context.Context, toEmail, toName, subject, text, _ string) (string, error) {
	logger.InfoContext(ctx, "Email (log backend)",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"body", text)
	return "", nil
}
