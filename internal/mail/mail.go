// Package mail sends the account emails (welcome, reset code, reset confirmation).
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SendGrid struct {
	client *sendgrid.Client
	from   string
}

func NewSendGrid(apiKey, from string) *SendGrid {
	return &SendGrid{client: sendgrid.NewSendClient(apiKey), from: from}
}

func (s *SendGrid) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail("Nganiriza", s.from), subject, sgmail.NewEmail("", to), "", htmlBody)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type SMTP struct {
	host, port string
	user, pass string
	from       string
}

func NewSMTP(host, port, user, pass, from string) *SMTP {
	return &SMTP{host: host, port: port, user: user, pass: pass, from: from}
}

func (s *SMTP) Send(_ context.Context, to, subject, htmlBody string) error {
	var msg strings.Builder
	msg.WriteString("MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n")
	fmt.Fprintf(&msg, "From: Nganiriza <%s>\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n\r\n", subject)
	msg.WriteString(htmlBody)

	var a smtp.Auth
	if s.user != "" {
		a = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	return smtp.SendMail(s.host+":"+s.port, a, s.from, []string{to}, []byte(msg.String()))
}

// Log only records what would have been sent.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

func (l *Log) Send(_ context.Context, to, subject, _ string) error {
	l.log.Info("email not sent, no transport configured", zap.String("to", to), zap.String("subject", subject))
	return nil
}

var templates = template.Must(template.New("").Parse(`
{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; background-color: #f6f6f6; padding: 20px;">
<div style="max-width: 560px; margin: auto; background: #ffffff; border-radius: 8px; padding: 30px;">
<h2 style="color: #7c3aed;">{{.Title}}</h2>
<p>Hello {{.Name}},</p>
{{if .Code}}<p>Use this code to reset your password. It expires in 5 minutes.</p>
<p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
<p>If you did not request a reset you can ignore this email.</p>{{end}}
{{if .Text}}<p>{{.Text}}</p>{{end}}
<p style="color: #888888; font-size: 12px;">Nganiriza</p>
</div></body></html>{{end}}`))

type page struct {
	Title, Name, Code, Text string
}

func render(p page) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "layout", p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Notifier renders and sends the account emails.
type Notifier struct {
	m Mailer
}

func NewNotifier(m Mailer) *Notifier { return &Notifier{m: m} }

func (n *Notifier) send(ctx context.Context, to, subject string, p page) error {
	body, err := render(p)
	if err != nil {
		return err
	}
	return n.m.Send(ctx, to, subject, body)
}

func (n *Notifier) Welcome(ctx context.Context, to, name string) error {
	return n.send(ctx, to, "New account created", page{
		Title: "Welcome to Nganiriza", Name: name,
		Text: "Your account has been created. You can now sign in and start a conversation.",
	})
}

func (n *Notifier) ResetCode(ctx context.Context, to, name, code string) error {
	return n.send(ctx, to, "Reset Password", page{Title: "Password reset", Name: name, Code: code})
}

func (n *Notifier) ResetConfirmed(ctx context.Context, to, name string) error {
	return n.send(ctx, to, "Confirm password reset", page{
		Title: "Password changed", Name: name,
		Text: "Your password was changed. If this was not you, contact support immediately.",
	})
}
