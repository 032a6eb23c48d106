package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// TwilioAPIURL is the base of the Twilio REST API
const TwilioAPIURL = "https://api.twilio.com/2010-04-01"

// WhatsAppClient sends WhatsApp messages through Twilio
type WhatsAppClient struct {
	client  *resty.Client
	baseURL string
	limiter *rate.Limiter
}

var _ Sender = (*WhatsAppClient)(nil)

type twilioMessage struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewWhatsAppClient creates a Twilio client. An empty baseURL uses the
// public API and a nil limiter disables pacing.
func NewWhatsAppClient(baseURL string, timeout time.Duration, limiter *rate.Limiter) *WhatsAppClient {
	if baseURL == "" {
		baseURL = TwilioAPIURL
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &WhatsAppClient{
		client:  resty.New().SetTimeout(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: limiter,
	}
}

func (w *WhatsAppClient) Kind() models.ChannelKind {
	return models.KindWhatsApp
}

// Send delivers msg.Text to every recipient. It succeeds if at least one
// recipient received the message.
func (w *WhatsAppClient) Send(ctx context.Context, ch models.AlertChannel, msg Message) error {
	if ch.WhatsApp == nil || !ch.WhatsApp.Complete() {
		return fmt.Errorf("channel %s is missing WhatsApp credentials (account_sid, auth_token, from_number, to_numbers)", ch.Name)
	}
	creds := *ch.WhatsApp

	var errs []string
	delivered := 0
	for _, to := range creds.ToNumbers {
		if err := w.sendOne(ctx, creds, to, msg.Text); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", to, err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	if len(errs) > 0 {
		logrus.Warnf("WhatsApp channel %s reached %d of %d recipients: %s",
			ch.Name, delivered, len(creds.ToNumbers), strings.Join(errs, "; "))
	}
	return nil
}

func (w *WhatsAppClient) sendOne(ctx context.Context, creds models.WhatsAppCredentials, to, body string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBasicAuth(creds.AccountSID, creds.AuthToken).
		SetFormData(map[string]string{
			"From": whatsappAddress(creds.FromNumber),
			"To":   whatsappAddress(to),
			"Body": body,
		}).
		Post(fmt.Sprintf("%s/Accounts/%s/Messages.json", w.baseURL, creds.AccountSID))
	if err != nil {
		return fmt.Errorf("failed to send WhatsApp message: %w", err)
	}

	var out twilioMessage
	_ = json.Unmarshal(resp.Body(), &out)

	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		if out.Message != "" {
			return fmt.Errorf("Twilio returned status %d: %s", resp.StatusCode(), out.Message)
		}
		return fmt.Errorf("Twilio returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	logrus.Debugf("WhatsApp message %s queued for %s", out.SID, to)
	return nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
