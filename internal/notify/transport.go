package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Transport delivers one rendered report to the recipients. Transports are
// tried in order by the Notifier; each must be independently swappable.
type Transport interface {
	Name() string
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// SMTPTransport delivers mail directly over SMTP.
type SMTPTransport struct {
	Host     string
	Port     int
	From     string
	User     string
	Password string
	StartTLS bool

	dialTimeout time.Duration
}

func NewSMTPTransport(host string, port int, from, user, password string, startTLS bool) *SMTPTransport {
	return &SMTPTransport{
		Host:        host,
		Port:        port,
		From:        from,
		User:        user,
		Password:    password,
		StartTLS:    startTLS,
		dialTimeout: 30 * time.Second,
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(ctx context.Context, recipients []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", t.Host, t.Port)

	dialer := &net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, t.Host)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer client.Close()

	if t.StartTLS {
		tlsConfig := &tls.Config{
			ServerName: t.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}

	if t.User != "" && t.Password != "" {
		auth := smtp.PlainAuth("", t.User, t.Password, t.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(t.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("open message body: %w", err)
	}
	if _, err := w.Write([]byte(buildMessage(t.From, recipients, subject, body))); err != nil {
		return fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message body: %w", err)
	}

	return client.Quit()
}

// buildMessage constructs the RFC 5322 message with headers.
func buildMessage(from string, recipients []string, subject, body string) string {
	var msg strings.Builder

	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return msg.String()
}

// SendmailTransport pipes the message to a local sendmail-compatible MTA.
type SendmailTransport struct {
	Path string
	From string
}

func NewSendmailTransport(path, from string) *SendmailTransport {
	if path == "" {
		path = "/usr/sbin/sendmail"
	}
	return &SendmailTransport{Path: path, From: from}
}

func (t *SendmailTransport) Name() string { return "sendmail" }

func (t *SendmailTransport) Send(ctx context.Context, recipients []string, subject, body string) error {
	cmd := exec.CommandContext(ctx, t.Path, "-t")
	cmd.Stdin = strings.NewReader(buildMessage(t.From, recipients, subject, body))

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("sendmail: %w: %s", err, string(out))
	}
	return nil
}

// FileTransport persists the rendered message to a local directory. It is
// the last link of the fallback chain: operators can still recover the
// report when every real transport is down.
type FileTransport struct {
	Dir string
}

func NewFileTransport(dir string) *FileTransport {
	return &FileTransport{Dir: dir}
}

func (t *FileTransport) Name() string { return "file" }

func (t *FileTransport) Send(ctx context.Context, recipients []string, subject, body string) error {
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return fmt.Errorf("create fallback directory: %w", err)
	}

	name := fmt.Sprintf("report_%s.txt", time.Now().UTC().Format("2006-01-02-150405"))
	path := filepath.Join(t.Dir, name)

	content := fmt.Sprintf("To: %s\nSubject: %s\n\n%s",
		strings.Join(recipients, ", "), subject, body)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("persist report to %s: %w", path, err)
	}
	return nil
}
