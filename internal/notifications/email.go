package notifications

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"gopkg.in/gomail.v2"
)

// mailDialer is satisfied by *gomail.Dialer
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailClient sends long-text alerts over SMTP
type EmailClient struct {
	dialer mailDialer
	from   string
}

var _ Sender = (*EmailClient)(nil)

// NewEmailClient creates an SMTP client
func NewEmailClient(host string, port int, username, password, from string) *EmailClient {
	if from == "" {
		from = username
	}
	return &EmailClient{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (e *EmailClient) Kind() models.ChannelKind {
	return models.KindEmail
}

// Send mails msg.Text to the channel recipients, attaching the map image
// when one was rendered.
func (e *EmailClient) Send(ctx context.Context, ch models.AlertChannel, msg Message) error {
	if ch.Email == nil || len(ch.Email.Recipients) == 0 {
		return fmt.Errorf("channel %s has no email recipients", ch.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", ch.Email.Recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", stripMarkup(msg.Text))

	if len(msg.Image) > 0 {
		image := msg.Image
		m.Attach("map.png", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(image)
			return err
		}), gomail.SetHeader(map[string][]string{"Content-Type": {"image/png"}}))
	}

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// stripMarkup removes the chat-style bold markers from long text
func stripMarkup(s string) string {
	return strings.ReplaceAll(s, "*", "")
}
