package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"ipwatch/internal/config"
	ntpl "ipwatch/internal/notify/template"
	"ipwatch/internal/version"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultEmailTimeout = 30 * time.Second
)

// EmailNotifier represents email notifier
type EmailNotifier struct {
	config    *config.SMTPConfig
	logger    *zap.Logger
	templates *ntpl.Set
}

// NewEmailNotifier creates new Email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, templates *ntpl.Set, logger *zap.Logger) (*EmailNotifier, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("email notifier is disabled")
	}
	if !templates.Has(ntpl.Address) {
		return nil, fmt.Errorf("email template %q is not defined", ntpl.Address)
	}

	return &EmailNotifier{
		config:    cfg,
		logger:    logger,
		templates: templates,
	}, nil
}

// Notify sends one HTML email for msg
func (n *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := n.render(msg)
	if err != nil {
		return err
	}

	raw := buildEmailMessage(n.config.From, n.config.To, msg.Subject(), body)
	if err := n.send(ctx, raw); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Debug("Email sent",
		zap.String("to", n.config.To),
		zap.String("subject", msg.Subject()))
	return nil
}

// render executes the address template
func (n *EmailNotifier) render(msg Message) (string, error) {
	return n.templates.Render(ntpl.Address, msg)
}

// send delivers msg over one SMTP session, using implicit TLS when configured
// and STARTTLS whenever the relay offers it
func (n *EmailNotifier) send(ctx context.Context, msg []byte) error {
	timeout := n.config.Timeout
	if timeout <= 0 {
		timeout = defaultEmailTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(n.config.Server, strconv.Itoa(n.config.Port))
	tlsConfig := &tls.Config{
		ServerName: n.config.Server,
		MinVersion: tls.VersionTLS12,
	}

	dialer := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if n.config.UseTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer func(conn net.Conn) {
		_ = conn.Close()
	}(conn)

	// Unblock any pending read or write once ctx is done
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	client, err := smtp.NewClient(conn, n.config.Server)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		_ = client.Close()
	}(client)

	if !n.config.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if n.config.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return fmt.Errorf("relay %s does not support authentication", addr)
		}
		auth := smtp.PlainAuth("", n.config.Username, n.config.AppPassword, n.config.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	from := cleanEmailAddress(n.config.From)
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM failed for %s: %w", from, err)
	}

	to := cleanEmailAddress(n.config.To)
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed for %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}

	return client.Quit()
}

// buildEmailMessage builds an RFC 5322 message with an HTML body
func buildEmailMessage(from, to, subject, body string) []byte {
	var msg bytes.Buffer

	headers := []struct {
		key   string
		value string
	}{
		{"From", from},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("utf-8", subject)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), messageIDDomain(from))},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
		{"X-Mailer", version.GetInfo().UserAgent()},
	}

	for _, h := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h.key, h.value))
	}

	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	return msg.Bytes()
}

// cleanEmailAddress strips the display name, keeping the bare address
func cleanEmailAddress(addr string) string {
	if parsed, err := mail.ParseAddress(addr); err == nil {
		return parsed.Address
	}
	if idx := strings.LastIndex(addr, "<"); idx >= 0 {
		return strings.Trim(addr[idx:], "<>")
	}
	return addr
}

// messageIDDomain returns the sender domain for Message-ID
func messageIDDomain(from string) string {
	addr := cleanEmailAddress(from)
	if idx := strings.LastIndex(addr, "@"); idx >= 0 && idx < len(addr)-1 {
		return addr[idx+1:]
	}
	return "localhost"
}
