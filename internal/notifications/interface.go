package notifications

import (
	"context"

	"github.com/earthquake-city/quake-alerts/internal/models"
)

// NotificationInterface delivers a rendered alert to one channel
type NotificationInterface interface {
	Send(ctx context.Context, ch models.AlertChannel, msg Message) error
}

// Sender delivers messages for a single channel kind
type Sender interface {
	NotificationInterface
	Kind() models.ChannelKind
}
