package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"venuely/internal/shared/config"
	"venuely/pkg/logger"
)

// EmailSender delivers the email channel of a message.
type EmailSender interface {
	Send(ctx context.Context, msg *Message) error
}

// NewEmailSender returns an SMTP sender, or a logging mock when SMTP is not configured.
func NewEmailSender(cfg config.EmailConfig, log *logger.Logger) EmailSender {
	if cfg.SMTPHost == "" || cfg.SMTPUsername == "" {
		log.Warn("SMTP not configured, emails will be logged only")
		return NewMockEmailSender(log)
	}
	return NewSMTPEmailSender(cfg)
}

var emailTemplate = template.Must(template.New("email").Parse(`
<h2>{{.Subject}}</h2>
<p>Hi {{.Name}},</p>
<p>{{.Body}}</p>
{{if .Reference}}<p>Reference: <strong>{{.Reference}}</strong></p>{{end}}
<p>Best regards,<br>{{.From}} Team</p>
`))

type emailView struct {
	Subject   string
	Name      string
	Body      string
	Reference string
	From      string
}

type SMTPEmailSender struct {
	cfg     config.EmailConfig
	timeout time.Duration
}

func NewSMTPEmailSender(cfg config.EmailConfig) *SMTPEmailSender {
	return &SMTPEmailSender{cfg: cfg, timeout: 30 * time.Second}
}

func (s *SMTPEmailSender) Send(ctx context.Context, msg *Message) error {
	if msg.RecipientEmail == "" {
		return fmt.Errorf("message %s has no recipient email", msg.ID)
	}
	htmlBody, textBody, err := renderEmail(msg, s.cfg.FromName)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}
	return s.sendWithSTARTTLS(ctx, msg.RecipientEmail, s.buildMessage(msg.RecipientEmail, msg.Subject, htmlBody, textBody))
}

// sendWithSTARTTLS uses ctx for the dial and its deadline for the whole session.
func (s *SMTPEmailSender) sendWithSTARTTLS(ctx context.Context, to string, message []byte) error {
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open SMTP session: %w", err)
	}
	defer client.Quit()

	if err = client.StartTLS(&tls.Config{ServerName: s.cfg.SMTPHost}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	if err = client.Mail(s.cfg.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return w.Close()
}

func (s *SMTPEmailSender) buildMessage(to, subject, htmlBody, textBody string) []byte {
	boundary := "boundary_" + strconv.FormatInt(time.Now().UnixNano(), 10)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.cfg.FromName, s.cfg.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, textBody)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, htmlBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

func renderEmail(msg *Message, from string) (string, string, error) {
	name := msg.RecipientName
	if name == "" {
		name = "there"
	}
	view := emailView{Subject: msg.Subject, Name: name, Body: msg.Body, Reference: msg.ReferenceID, From: from}

	var html bytes.Buffer
	if err := emailTemplate.Execute(&html, view); err != nil {
		return "", "", err
	}

	text := fmt.Sprintf("Hi %s,\n\n%s\n", name, msg.Body)
	if msg.ReferenceID != "" {
		text += fmt.Sprintf("Reference: %s\n", msg.ReferenceID)
	}
	text += fmt.Sprintf("\nBest regards,\n%s Team", from)
	return html.String(), text, nil
}

type MockEmailSender struct {
	log *logger.Logger
}

func NewMockEmailSender(log *logger.Logger) *MockEmailSender {
	return &MockEmailSender{log: log}
}

func (s *MockEmailSender) Send(ctx context.Context, msg *Message) error {
	s.log.InfoContext(ctx, "mock email",
		"type", msg.Type,
		"to", msg.RecipientEmail,
		"subject", msg.Subject,
	)
	return nil
}
