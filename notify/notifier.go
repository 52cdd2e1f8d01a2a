// Package notify delivers best-effort order notifications to the operations mailbox.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"gravecare-api/apperrors"
	"gravecare-api/config"
	"gravecare-api/models"
)

// ErrNotConfigured is returned by Send when transport credentials are missing.
var ErrNotConfigured = errors.New("notify: mail transport not configured")

const orderSubject = "New order received"

// Message is a rendered email ready for a transport.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
	Text     string
}

// Transport delivers a Message over some mail provider.
type Transport interface {
	Name() string
	// Configured reports whether the transport has its credentials.
	Configured() bool
	Send(ctx context.Context, msg Message) error
	// Verify checks that the provider is reachable and accepts the credentials.
	Verify(ctx context.Context) error
}

// MailNotifier renders order summaries and hands them to a Transport.
type MailNotifier struct {
	transport Transport
	from      string
	fromName  string
	to        string
}

func NewMailNotifier(transport Transport, from, fromName, to string) *MailNotifier {
	return &MailNotifier{transport: transport, from: from, fromName: fromName, to: to}
}

// NewFromConfig picks the transport named by cfg.Transport. timeout bounds SMTP dialing.
func NewFromConfig(cfg config.Mail, timeout time.Duration) *MailNotifier {
	var t Transport
	switch cfg.Transport {
	case config.TransportPostmark:
		t = NewPostmarkTransport(cfg.PostmarkToken)
	case config.TransportSendGrid:
		t = NewSendGridTransport(cfg.SendGridAPIKey)
	default:
		t = NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, timeout)
	}
	return NewMailNotifier(t, cfg.From, cfg.FromName, cfg.To)
}

// IsConfigured is true when the transport has credentials and both addresses are known.
func (n *MailNotifier) IsConfigured() bool {
	return n != nil && n.transport != nil && n.transport.Configured() && n.from != "" && n.to != ""
}

// Transport returns the transport name, for logging.
func (n *MailNotifier) Transport() string {
	if n == nil || n.transport == nil {
		return "none"
	}
	return n.transport.Name()
}

// Send emails the order summary. Every failure is a DeliveryError.
func (n *MailNotifier) Send(ctx context.Context, order models.Order) error {
	if !n.IsConfigured() {
		return apperrors.Delivery(ErrNotConfigured)
	}
	msg, err := n.render(order)
	if err != nil {
		return apperrors.Delivery(err)
	}
	if err := n.transport.Send(ctx, msg); err != nil {
		return apperrors.Delivery(fmt.Errorf("%s: %w", n.transport.Name(), err))
	}
	return nil
}

// Verify checks transport reachability. A successful check does not guarantee a later Send.
func (n *MailNotifier) Verify(ctx context.Context) error {
	if !n.IsConfigured() {
		return ErrNotConfigured
	}
	return n.transport.Verify(ctx)
}

func (n *MailNotifier) render(order models.Order) (Message, error) {
	var html, text bytes.Buffer
	if err := orderHTML.Execute(&html, order); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := orderText.Execute(&text, order); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{
		From:     n.from,
		FromName: n.fromName,
		To:       n.to,
		Subject:  orderSubject,
		HTML:     html.String(),
		Text:     text.String(),
	}, nil
}

var orderHTML = htmltemplate.Must(htmltemplate.New("order.html").Parse(`<h3>New order</h3>
<ul>
  <li><strong>Name:</strong> {{.Name}}</li>
  <li><strong>Email:</strong> {{.Email}}</li>
  <li><strong>Phone:</strong> {{.Phone}}</li>
  <li><strong>Address:</strong> {{.Address}}</li>
  <li><strong>Coordinates:</strong> {{.Lat}}, {{.Lng}}</li>
  <li><strong>Order ID:</strong> {{.ID.Hex}}</li>
</ul>
`))

var orderText = texttemplate.Must(texttemplate.New("order.txt").Parse(`New order
Name: {{.Name}}
Email: {{.Email}}
Phone: {{.Phone}}
Address: {{.Address}}
Coordinates: {{.Lat}}, {{.Lng}}
Order ID: {{.ID.Hex}}
`))
