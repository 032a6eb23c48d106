package notifications

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/formatter"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

// MockSender is a mock implementation of Sender
type MockSender struct {
	mock.Mock
	kind models.ChannelKind
}

func (m *MockSender) Kind() models.ChannelKind { return m.kind }

func (m *MockSender) Send(ctx context.Context, ch models.AlertChannel, msg Message) error {
	args := m.Called(ctx, ch, msg)
	return args.Error(0)
}

func twitterChannel() models.AlertChannel {
	return models.AlertChannel{
		Name: "quake-x",
		Kind: models.KindTwitter,
		Twitter: &models.TwitterCredentials{
			APIKey: "key", APISecret: "secret", AccessToken: "token", AccessTokenSecret: "token-secret",
		},
	}
}

func TestService_RoutesByKind(t *testing.T) {
	slack := &MockSender{kind: models.KindSlack}
	twitter := &MockSender{kind: models.KindTwitter}
	service := NewService(slack, twitter)

	ch := models.AlertChannel{Name: "ops", Kind: models.KindSlack}
	msg := Message{Text: "hello"}
	slack.On("Send", mock.Anything, ch, msg).Return(nil)

	require.NoError(t, service.Send(context.Background(), ch, msg))
	slack.AssertExpectations(t)
	twitter.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)

	assert.True(t, service.Supports(models.KindTwitter))
	assert.False(t, service.Supports(models.KindEmail))
}

func TestService_UnsupportedKind(t *testing.T) {
	service := NewService()

	err := service.Send(context.Background(), models.AlertChannel{Name: "pager", Kind: "pager"}, Message{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported channel type")
}

func TestService_PropagatesSenderError(t *testing.T) {
	slack := &MockSender{kind: models.KindSlack}
	slack.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("webhook gone"))

	err := NewService(slack).Send(context.Background(), models.AlertChannel{Kind: models.KindSlack}, Message{})

	assert.EqualError(t, err, "webhook gone")
}

func TestSlackClient_Send(t *testing.T) {
	var received formatter.SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	msg := formatter.SlackMessage{Text: "<!everyone> *4.5* - Somewhere", Blocks: []formatter.SlackBlock{{Type: "divider"}}}
	ch := models.AlertChannel{Name: "ops", Kind: models.KindSlack, WebhookURL: server.URL}

	err := NewSlackClient(5*time.Second).Send(context.Background(), ch, Message{Rich: &msg})

	require.NoError(t, err)
	assert.Equal(t, msg, received)
}

func TestSlackClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no_service"))
	}))
	defer server.Close()

	client := NewSlackClient(5 * time.Second)

	err := client.Send(context.Background(), models.AlertChannel{Name: "ops"}, Message{Text: "x"})
	assert.ErrorContains(t, err, "no webhook URL")

	err = client.Send(context.Background(), models.AlertChannel{Name: "ops", WebhookURL: server.URL}, Message{Text: "x"})
	assert.ErrorContains(t, err, "status 404: no_service")
}

func TestTwitterClient_PostsWithMedia(t *testing.T) {
	image := []byte("\x89PNG fake")
	var tweet tweetRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth "))
		switch r.URL.Path {
		case "/upload":
			require.NoError(t, r.ParseForm())
			decoded, err := base64.StdEncoding.DecodeString(r.PostForm.Get("media_data"))
			require.NoError(t, err)
			assert.Equal(t, image, decoded)
			w.Write([]byte(`{"media_id_string":"m-123"}`))
		case "/tweets":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&tweet))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"t-1","text":"ok"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewTwitterClient(server.URL+"/tweets", server.URL+"/upload", 5*time.Second, nil)
	err := client.Send(context.Background(), twitterChannel(), Message{Text: "M4.5 earthquake", Image: image})

	require.NoError(t, err)
	assert.Equal(t, "M4.5 earthquake", tweet.Text)
	require.NotNil(t, tweet.Media)
	assert.Equal(t, []string{"m-123"}, tweet.Media.MediaIDs)
}

func TestTwitterClient_UploadFailureStillPosts(t *testing.T) {
	var tweet tweetRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload" {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tweet))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"t-2"}}`))
	}))
	defer server.Close()

	client := NewTwitterClient(server.URL+"/tweets", server.URL+"/upload", 5*time.Second, nil)
	err := client.Send(context.Background(), twitterChannel(), Message{Text: "text only", Image: []byte("png")})

	require.NoError(t, err)
	assert.Equal(t, "text only", tweet.Text)
	assert.Nil(t, tweet.Media)
}

func TestTwitterClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, "rate limit exceeded"},
		{"unauthorized", http.StatusUnauthorized, `{}`, "authentication failed"},
		{"forbidden", http.StatusForbidden, `{"detail":"duplicate content"}`, "forbidden: duplicate content"},
		{"server error", http.StatusInternalServerError, `boom`, "status 500: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewTwitterClient(server.URL, server.URL, 5*time.Second, nil)
			err := client.Send(context.Background(), twitterChannel(), Message{Text: "x"})

			assert.ErrorContains(t, err, tt.expected)
		})
	}
}

func TestTwitterClient_MissingCredentials(t *testing.T) {
	ch := twitterChannel()
	ch.Twitter.AccessTokenSecret = ""

	err := NewTwitterClient("", "", time.Second, nil).Send(context.Background(), ch, Message{Text: "x"})

	assert.ErrorContains(t, err, "missing Twitter credentials")
}

func TestWhatsAppClient_Send(t *testing.T) {
	var mu sync.Mutex
	var recipients []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "auth", pass)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+15550000000", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))

		mu.Lock()
		recipients = append(recipients, r.PostForm.Get("To"))
		mu.Unlock()

		if r.PostForm.Get("To") == "whatsapp:+15550000002" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":63015,"message":"recipient has not joined the sandbox"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer server.Close()

	ch := models.AlertChannel{
		Name: "family",
		Kind: models.KindWhatsApp,
		WhatsApp: &models.WhatsAppCredentials{
			AccountSID: "AC123",
			AuthToken:  "auth",
			FromNumber: "+15550000000",
			ToNumbers:  []string{"+15550000001", "whatsapp:+15550000002"},
		},
	}

	err := NewWhatsAppClient(server.URL, 5*time.Second, nil).Send(context.Background(), ch, Message{Text: "hello"})

	require.NoError(t, err)
	assert.Equal(t, []string{"whatsapp:+15550000001", "whatsapp:+15550000002"}, recipients)
}

func TestWhatsAppClient_AllRecipientsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":20003,"message":"Authenticate"}`))
	}))
	defer server.Close()

	ch := models.AlertChannel{
		Name: "family",
		WhatsApp: &models.WhatsAppCredentials{
			AccountSID: "AC123", AuthToken: "bad", FromNumber: "+1", ToNumbers: []string{"+2", "+3"},
		},
	}

	err := NewWhatsAppClient(server.URL, 5*time.Second, nil).Send(context.Background(), ch, Message{Text: "hello"})

	require.Error(t, err)
	assert.Equal(t, "+2: Twilio returned status 401: Authenticate; +3: Twilio returned status 401: Authenticate", err.Error())
}

func TestWhatsAppClient_MissingCredentials(t *testing.T) {
	err := NewWhatsAppClient("", time.Second, nil).Send(context.Background(), models.AlertChannel{Name: "x"}, Message{})

	assert.ErrorContains(t, err, "missing WhatsApp credentials")
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestEmailClient_Send(t *testing.T) {
	dialer := &fakeDialer{}
	client := &EmailClient{dialer: dialer, from: "alerts@example.com"}
	ch := models.AlertChannel{Name: "mail", Kind: models.KindEmail, Email: &models.EmailTarget{Recipients: []string{"a@example.com", "b@example.com"}}}

	err := client.Send(context.Background(), ch, Message{Subject: "M4.5 - Somewhere", Text: "*Magnitude:* 4.5", Image: []byte("png")})

	require.NoError(t, err)
	require.Len(t, dialer.sent, 1)
	m := dialer.sent[0]
	assert.Equal(t, []string{"alerts@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"M4.5 - Somewhere"}, m.GetHeader("Subject"))

	var buf strings.Builder
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Magnitude: 4.5")
	assert.Contains(t, buf.String(), `filename="map.png"`)
}

func TestEmailClient_Errors(t *testing.T) {
	dialer := &fakeDialer{err: io.ErrUnexpectedEOF}
	client := &EmailClient{dialer: dialer, from: "alerts@example.com"}

	err := client.Send(context.Background(), models.AlertChannel{Name: "mail"}, Message{})
	assert.ErrorContains(t, err, "no email recipients")

	ch := models.AlertChannel{Name: "mail", Email: &models.EmailTarget{Recipients: []string{"a@example.com"}}}
	err = client.Send(context.Background(), ch, Message{Text: "x"})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
