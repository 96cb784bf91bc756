package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hookline/tow-bookings/pkg/config"
)

// SMTPMailer delivers through a plain SMTP relay. Pointed at Mailpit on
// 1025 in local setups, a real relay in staging.
type SMTPMailer struct {
	host   string
	port   int
	from   string
	user   string
	pass   string
	useTLS bool
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		host:   strings.TrimSpace(cfg.SMTPHost),
		port:   cfg.SMTPPort,
		from:   strings.TrimSpace(cfg.From),
		user:   strings.TrimSpace(cfg.SMTPUser),
		pass:   cfg.SMTPPass,
		useTLS: cfg.SMTPTLS,
	}
}

func (s *SMTPMailer) Send(_ context.Context, toEmail, _, subject, text, html string) (string, error) {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return "", fmt.Errorf("empty recipient email")
	}

	var buf bytes.Buffer
	boundary := "mixed-boundary"
	fmt.Fprintf(&buf, "From: %s\r\n", s.from)
	fmt.Fprintf(&buf, "To: %s\r\n", toEmail)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", text)

	if strings.TrimSpace(html) != "" {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
		fmt.Fprintf(&buf, "%s\r\n\r\n", html)
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	// Mailpit path: no auth, no TLS
	if !s.useTLS && s.user == "" {
		return "", smtp.SendMail(addr, nil, s.from, []string{toEmail}, buf.Bytes())
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}

	// SendMail negotiates STARTTLS when the server advertises it
	if err := smtp.SendMail(addr, auth, s.from, []string{toEmail}, buf.Bytes()); err == nil {
		return "", nil
	}

	// Implicit TLS, e.g. port 465
	if s.useTLS {
		tlsCfg := &tls.Config{ServerName: s.host}
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return "", err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, s.host)
		if err != nil {
			return "", err
		}
		defer c.Quit()

		if auth != nil {
			if err := c.Auth(auth); err != nil {
				return "", err
			}
		}
		if err := c.Mail(s.from); err != nil {
			return "", err
		}
		if err := c.Rcpt(toEmail); err != nil {
			return "", err
		}
		w, err := c.Data()
		if err != nil {
			return "", err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return "", err
		}
		return "", w.Close()
	}

	return "", fmt.Errorf("smtp send failed")
}
