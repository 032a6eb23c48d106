package notifications

import (
	"context"
	"fmt"

	"github.com/earthquake-city/quake-alerts/internal/formatter"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

// Message is a rendered alert. Rich is set for Slack channels; Text holds
// the short or long text for the others.
type Message struct {
	Rich    *formatter.SlackMessage
	Text    string
	Subject string
	Image   []byte
}

// Service routes each alert to the sender registered for the channel kind
type Service struct {
	senders map[models.ChannelKind]Sender
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// NewService creates a dispatcher over the given senders. A later sender
// replaces an earlier one of the same kind.
func NewService(senders ...Sender) *Service {
	s := &Service{senders: make(map[models.ChannelKind]Sender, len(senders))}
	for _, sender := range senders {
		s.senders[sender.Kind()] = sender
	}
	return s
}

// Send delivers msg to ch using the sender for its kind
func (s *Service) Send(ctx context.Context, ch models.AlertChannel, msg Message) error {
	sender, ok := s.senders[ch.Kind]
	if !ok {
		return fmt.Errorf("unsupported channel type %q for channel %s", ch.Kind, ch.Name)
	}

	if err := sender.Send(ctx, ch, msg); err != nil {
		logrus.WithFields(logrus.Fields{"channel": ch.Name, "kind": ch.Kind}).Errorf("Delivery failed: %v", err)
		return err
	}

	logrus.WithFields(logrus.Fields{"channel": ch.Name, "kind": ch.Kind}).Info("Alert delivered")
	return nil
}

// Supports reports whether a sender is registered for kind
func (s *Service) Supports(kind models.ChannelKind) bool {
	_, ok := s.senders[kind]
	return ok
}
