package notify

import (
	"context"
	"fmt"
	"time"

	mail "github.com/wneessen/go-mail"
)

const implicitTLSPort = 465

// SMTPTransport sends mail through an authenticated SMTP server. Port 465 uses
// implicit TLS; any other port requires STARTTLS.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

func NewSMTPTransport(host string, port int, username, password string, timeout time.Duration) *SMTPTransport {
	if port == 0 {
		port = implicitTLSPort
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPTransport{host: host, port: port, username: username, password: password, timeout: timeout}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Configured() bool {
	return t.host != "" && t.username != "" && t.password != ""
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.FromFormat(msg.FromName, msg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	if msg.Text != "" {
		m.AddAlternativeString(mail.TypeTextPlain, msg.Text)
	}

	client, err := t.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (t *SMTPTransport) Verify(ctx context.Context) error {
	client, err := t.client()
	if err != nil {
		return err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	return client.Close()
}

func (t *SMTPTransport) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(t.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.username),
		mail.WithPassword(t.password),
		mail.WithTimeout(t.timeout),
	}
	if t.port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(t.host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return client, nil
}
