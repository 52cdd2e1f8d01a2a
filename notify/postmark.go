package notify

import (
	"context"
	"fmt"

	"github.com/keighl/postmark"
)

// PostmarkTransport sends mail through the Postmark HTTP API
type PostmarkTransport struct {
	client *postmark.Client
	token  string
}

func NewPostmarkTransport(serverToken string) *PostmarkTransport {
	return &PostmarkTransport{client: postmark.NewClient(serverToken, ""), token: serverToken}
}

func (t *PostmarkTransport) Name() string { return "postmark" }

func (t *PostmarkTransport) Configured() bool { return t.token != "" }

// Send posts the email. The client takes no context, so the call is abandoned
// (not cancelled) when ctx ends first.
func (t *PostmarkTransport) Send(ctx context.Context, msg Message) error {
	done := make(chan error, 1)
	go func() {
		_, err := t.client.SendEmail(postmark.Email{
			From:     fmt.Sprintf("%s <%s>", msg.FromName, msg.From),
			To:       msg.To,
			Subject:  msg.Subject,
			HtmlBody: msg.HTML,
			TextBody: msg.Text,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Verify is a no-op: the HTTP API has no session to check ahead of a send.
func (t *PostmarkTransport) Verify(context.Context) error { return nil }
