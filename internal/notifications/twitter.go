package notifications

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	TwitterAPIURL    = "https://api.twitter.com/2/tweets"
	TwitterUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

// TwitterClient posts alerts to X (Twitter) with OAuth 1.0a user context
type TwitterClient struct {
	tweetURL  string
	uploadURL string
	timeout   time.Duration
	limiter   *rate.Limiter
}

var _ Sender = (*TwitterClient)(nil)

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type twitterError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

// NewTwitterClient creates a Twitter client. Empty URLs fall back to the
// public endpoints and a nil limiter disables pacing.
func NewTwitterClient(tweetURL, uploadURL string, timeout time.Duration, limiter *rate.Limiter) *TwitterClient {
	if tweetURL == "" {
		tweetURL = TwitterAPIURL
	}
	if uploadURL == "" {
		uploadURL = TwitterUploadURL
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &TwitterClient{
		tweetURL:  tweetURL,
		uploadURL: uploadURL,
		timeout:   timeout,
		limiter:   limiter,
	}
}

func (t *TwitterClient) Kind() models.ChannelKind {
	return models.KindTwitter
}

func (t *TwitterClient) restClient(ctx context.Context, creds models.TwitterCredentials) *resty.Client {
	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	return resty.NewWithClient(config.Client(ctx, token)).
		SetTimeout(t.timeout).
		SetHeader("User-Agent", "Quake-Alerts/1.0")
}

// Send posts msg.Text. An image that fails to upload is dropped and the
// post goes out without it.
func (t *TwitterClient) Send(ctx context.Context, ch models.AlertChannel, msg Message) error {
	if ch.Twitter == nil || !ch.Twitter.Complete() {
		return fmt.Errorf("channel %s is missing Twitter credentials (api_key, api_secret, access_token, access_token_secret)", ch.Name)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for Twitter rate limiter: %w", err)
	}

	client := t.restClient(ctx, *ch.Twitter)

	req := tweetRequest{Text: msg.Text}
	if len(msg.Image) > 0 {
		mediaID, err := t.uploadMedia(ctx, client, msg.Image)
		if err != nil {
			logrus.Warnf("Map image upload failed for channel %s, posting without it: %v", ch.Name, err)
		} else {
			req.Media = &tweetMedia{MediaIDs: []string{mediaID}}
		}
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(t.tweetURL)
	if err != nil {
		return fmt.Errorf("failed to post tweet: %w", err)
	}

	switch resp.StatusCode() {
	case 200, 201:
		var out tweetResponse
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return fmt.Errorf("failed to parse Twitter response: %w", err)
		}
		logrus.Infof("Posted tweet %s to %s", out.Data.ID, ch.Name)
		return nil
	case 429:
		if reset := resp.Header().Get("x-rate-limit-reset"); reset != "" {
			logrus.Infof("Twitter rate limit resets at %s", reset)
		}
		return fmt.Errorf("Twitter rate limit exceeded")
	case 401:
		return fmt.Errorf("Twitter authentication failed, check credentials")
	case 403:
		var apiErr twitterError
		_ = json.Unmarshal(resp.Body(), &apiErr)
		if apiErr.Detail == "" {
			apiErr.Detail = string(resp.Body())
		}
		return fmt.Errorf("Twitter forbidden: %s", apiErr.Detail)
	default:
		return fmt.Errorf("Twitter API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
}

func (t *TwitterClient) uploadMedia(ctx context.Context, client *resty.Client, image []byte) (string, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"media_data": base64.StdEncoding.EncodeToString(image),
		}).
		Post(t.uploadURL)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	switch resp.StatusCode() {
	case 200, 201, 202:
	case 413:
		return "", fmt.Errorf("image too large (%d bytes)", len(image))
	default:
		return "", fmt.Errorf("media upload returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var out mediaUploadResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to parse media upload response: %w", err)
	}
	if out.MediaIDString == "" {
		return "", fmt.Errorf("media upload returned no media id")
	}

	return out.MediaIDString, nil
}
