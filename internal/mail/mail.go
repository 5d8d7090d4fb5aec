// Package mail renders account emails and hands them to SMTP or, when SMTP
// is not configured, to the log.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/tagboxapp/tagbox-server/internal/config"
)

// Message is one outgoing email. Text is derived from HTML when empty.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when cfg is usable and a log mailer otherwise.
func New(cfg config.MailConfig, logger *slog.Logger) Mailer {
	if cfg.Enabled() {
		return NewSMTPMailer(cfg)
	}
	logger.Warn("SMTP not configured, outgoing mail will be logged")
	return &LogMailer{logger: logger}
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	addr string
	from mail.Address
	auth smtp.Auth
}

// NewSMTPMailer creates a mailer for cfg. Auth is skipped when no username is set.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	m := &SMTPMailer{
		addr: cfg.Host + ":" + cfg.Port,
		from: mail.Address{Name: cfg.FromName, Address: cfg.From},
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// Send delivers msg. net/smtp cannot be cancelled mid-conversation, so ctx
// is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := buildMessage(m.from, msg, time.Now())
	if err != nil {
		return err
	}

	if err := smtp.SendMail(m.addr, m.auth, m.from.Address, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
// Used in development and whenever SMTP is not configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs msg with its plain-text body.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	text, err := plainText(msg)
	if err != nil {
		return err
	}
	m.logger.Info("Mail not sent (no SMTP configured)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", text,
	)
	return nil
}

func plainText(msg Message) (string, error) {
	if msg.Text != "" {
		return msg.Text, nil
	}
	text, err := htmltomarkdown.ConvertString(msg.HTML)
	if err != nil {
		return "", fmt.Errorf("convert mail body to text: %w", err)
	}
	return text, nil
}

// buildMessage renders msg as a multipart/alternative RFC 5322 message
// with a plain-text part followed by the HTML part.
func buildMessage(from mail.Address, msg Message, now time.Time) ([]byte, error) {
	text, err := plainText(msg)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct{ contentType, content string }{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from.String())
	fmt.Fprintf(&out, "To: %s\r\n", msg.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&out, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&out, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	fmt.Fprintf(&out, "\r\n")
	out.Write(body.Bytes())

	return out.Bytes(), nil
}
