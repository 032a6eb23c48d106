package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/api"
	"github.com/earthquake-city/quake-alerts/internal/config"
	"github.com/earthquake-city/quake-alerts/internal/mapimage"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/earthquake-city/quake-alerts/internal/monitoring"
	"github.com/earthquake-city/quake-alerts/internal/notifications"
	"github.com/earthquake-city/quake-alerts/internal/scheduler"
	"github.com/earthquake-city/quake-alerts/internal/sources"
	"github.com/earthquake-city/quake-alerts/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
}

// New constructs a new application handle.
func New(cfg *config.Config) *App {
	return &App{Config: cfg}
}

// ConfigureLogging applies the level and formatter settings to logrus
func ConfigureLogging(cfg *config.Config) {
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if strings.EqualFold(cfg.LogFormat, "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// OpenStore opens the seen-id store selected by STORE_BACKEND. The returned
// closer is never nil.
func (a *App) OpenStore(ctx context.Context) (storage.SeenStore, func(), error) {
	noop := func() {}

	switch a.Config.StoreBackend {
	case config.StoreAzure:
		store, err := storage.NewAzureStore(ctx, a.Config.StorageAccount, a.Config.StorageContainer)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize Azure storage: %w", err)
		}
		return store, noop, nil

	case config.StoreRedis:
		store, err := storage.NewRedisStore(ctx, a.Config.RedisURL, a.Config.RedisKey)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize Redis storage: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logrus.Warnf("Failed to close Redis client: %v", err)
			}
		}, nil

	case config.StorePostgres:
		store, err := storage.NewPostgresStore(ctx, a.Config.PostgresDSN, 4)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize Postgres storage: %w", err)
		}
		return store, store.Close, nil

	default:
		logrus.Warn("Using in-memory seen-id store; alerts may repeat after a restart")
		return storage.NewMemoryStore(), noop, nil
	}
}

// NewNotifier registers a sender for every channel kind the process can serve
func (a *App) NewNotifier() *notifications.Service {
	timeout := a.Config.HTTPTimeout
	limit := rate.Inf
	if a.Config.SendRate > 0 {
		limit = rate.Limit(a.Config.SendRate)
	}

	senders := []notifications.Sender{
		notifications.NewSlackClient(timeout),
		notifications.NewTwitterClient("", "", timeout, rate.NewLimiter(limit, 1)),
		notifications.NewWhatsAppClient("", timeout, rate.NewLimiter(limit, 1)),
	}
	if a.Config.SMTPHost != "" {
		senders = append(senders, notifications.NewEmailClient(
			a.Config.SMTPHost, a.Config.SMTPPort, a.Config.SMTPUsername, a.Config.SMTPPassword, a.Config.SMTPFrom,
		))
	}

	return notifications.NewService(senders...)
}

// NewFeed returns the upstream earthquake feed client
func (a *App) NewFeed() *sources.USGSClient {
	return sources.NewUSGSClient(a.Config.FeedURL, a.Config.HTTPTimeout)
}

// NewMonitor wires the monitoring service against the given store
func (a *App) NewMonitor(store storage.SeenStore) *monitoring.Service {
	notifier := a.NewNotifier()
	if a.Config.Alerting != nil {
		for _, name := range UnsupportedChannels(notifier, a.Config.Alerting.Channels) {
			logrus.Warnf("Channel %s has no registered sender; its alerts will fail", name)
		}
	}
	return monitoring.NewService(a.Config, a.NewFeed(), store, notifier, mapimage.NewChartRenderer())
}

// UnsupportedChannels names the channels whose kind has no sender in n
func UnsupportedChannels(n *notifications.Service, channels []models.AlertChannel) []string {
	var out []string
	for _, ch := range channels {
		if !n.Supports(ch.Kind) {
			out = append(out, ch.Name)
		}
	}
	return out
}

// Serve runs the scheduler and the HTTP server until SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	monitor := a.NewMonitor(store)

	sched := scheduler.NewService(a.Config.CheckInterval, monitor)
	if err := sched.Start(true); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", a.Config.Port),
		Handler:      api.NewRouter(monitor),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logrus.Infof("HTTP server starting on port %s", a.Config.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
	return nil
}

// Once performs a single monitoring run and returns its result
func (a *App) Once(ctx context.Context) (*models.ProcessingResult, error) {
	store, closeStore, err := a.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return a.NewMonitor(store).Process(ctx), nil
}

// TestAlertOptions configure the test-alert command.
type TestAlertOptions struct {
	Channel   string
	Kind      models.ChannelKind
	Magnitude float64
	DryRun    bool
}

// SelectChannels returns the configured channels matching the name and kind
// filters. Empty filters match everything.
func SelectChannels(channels []models.AlertChannel, name string, kind models.ChannelKind) ([]models.AlertChannel, error) {
	var out []models.AlertChannel
	for _, ch := range channels {
		if name != "" && !strings.EqualFold(ch.Name, name) {
			continue
		}
		if kind != "" && ch.Kind != kind {
			continue
		}
		out = append(out, ch)
	}

	if len(out) == 0 {
		switch {
		case name != "":
			return nil, fmt.Errorf("no channel named %q", name)
		case kind != "":
			return nil, fmt.Errorf("no channels of type %q", kind)
		default:
			return nil, errors.New("no alert channels configured")
		}
	}
	return out, nil
}

// TestAlert sends, or with DryRun renders, a synthetic alert to the selected
// channels. The seen-id store is never opened.
func (a *App) TestAlert(ctx context.Context, opts TestAlertOptions) ([]models.AlertResult, map[string]notifications.Message, error) {
	monitor := a.NewMonitor(storage.NewMemoryStore())

	channels, err := SelectChannels(monitor.Channels(), opts.Channel, opts.Kind)
	if err != nil {
		return nil, nil, err
	}

	event := monitoring.TestEvent(time.Now(), opts.Magnitude)
	if opts.DryRun {
		return nil, monitor.PreviewTestAlert(ctx, event, channels), nil
	}
	return monitor.SendTestAlert(ctx, event, channels), nil, nil
}
