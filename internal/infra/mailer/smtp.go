// Package mailer delivers deadline-alert emails over SMTP. It performs a
// single delivery attempt per call; retrying is the dispatcher's job.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"support_plan_notifier/internal/domain/mail"
)

type SMTPSender struct {
	host string
	addr string
	from string
	auth smtp.Auth
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		host: host,
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
	}
}

// Send performs one SMTP exchange bounded by the context: the dial is
// context-aware and the connection deadline mirrors the context deadline,
// so a timed-out send releases its connection instead of leaving a goroutine
// blocked on a dead server.
func (s *SMTPSender) Send(ctx context.Context, msg mail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return sendError(ctx, msg.To, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	// Unblock any in-progress read or write when the context is cancelled
	// before its deadline.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return sendError(ctx, msg.To, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return sendError(ctx, msg.To, err)
		}
	}
	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return sendError(ctx, msg.To, err)
		}
	}
	if err := client.Mail(s.from); err != nil {
		return sendError(ctx, msg.To, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return sendError(ctx, msg.To, err)
	}
	w, err := client.Data()
	if err != nil {
		return sendError(ctx, msg.To, err)
	}
	if _, err := w.Write(buildMessage(s.from, msg)); err != nil {
		return sendError(ctx, msg.To, err)
	}
	if err := w.Close(); err != nil {
		return sendError(ctx, msg.To, err)
	}
	if err := client.Quit(); err != nil {
		return sendError(ctx, msg.To, err)
	}
	return nil
}

// sendError prefers the context error, so callers can tell timeouts and
// cancellations apart from server rejections.
func sendError(ctx context.Context, to string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("smtp send to %s failed: %w", to, err)
}

// buildMessage renders the RFC 5322 wire form of a plain-text UTF-8 email.
func buildMessage(from string, msg mail.Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
