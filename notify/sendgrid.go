package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridTransport sends mail through the SendGrid v3 API
type SendGridTransport struct {
	client *sendgrid.Client
	apiKey string
}

func NewSendGridTransport(apiKey string) *SendGridTransport {
	return &SendGridTransport{client: sendgrid.NewSendClient(apiKey), apiKey: apiKey}
}

func (t *SendGridTransport) Name() string { return "sendgrid" }

func (t *SendGridTransport) Configured() bool { return t.apiKey != "" }

func (t *SendGridTransport) Send(ctx context.Context, msg Message) error {
	from := sgmail.NewEmail(msg.FromName, msg.From)
	to := sgmail.NewEmail("", msg.To)
	email := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := t.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("send mail: sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// Verify is a no-op: the HTTP API has no session to check ahead of a send.
func (t *SendGridTransport) Verify(context.Context) error { return nil }
