package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/go-resty/resty/v2"
)

// SlackClient posts Block Kit payloads to incoming webhooks
type SlackClient struct {
	client *resty.Client
}

var _ Sender = (*SlackClient)(nil)

// NewSlackClient creates a Slack webhook client
func NewSlackClient(timeout time.Duration) *SlackClient {
	return &SlackClient{client: resty.New().SetTimeout(timeout)}
}

func (s *SlackClient) Kind() models.ChannelKind {
	return models.KindSlack
}

// Send posts the rich payload, or a plain text payload when none is set
func (s *SlackClient) Send(ctx context.Context, ch models.AlertChannel, msg Message) error {
	if ch.WebhookURL == "" {
		return fmt.Errorf("channel %s has no webhook URL", ch.Name)
	}

	var body interface{} = msg.Rich
	if msg.Rich == nil {
		body = map[string]string{"text": msg.Text}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(ch.WebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Slack webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}
