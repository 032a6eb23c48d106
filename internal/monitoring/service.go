package monitoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/config"
	"github.com/earthquake-city/quake-alerts/internal/dedup"
	"github.com/earthquake-city/quake-alerts/internal/formatter"
	"github.com/earthquake-city/quake-alerts/internal/geo"
	"github.com/earthquake-city/quake-alerts/internal/mapimage"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/earthquake-city/quake-alerts/internal/notifications"
	"github.com/earthquake-city/quake-alerts/internal/ratelimit"
	"github.com/earthquake-city/quake-alerts/internal/rules"
	"github.com/earthquake-city/quake-alerts/internal/sources"
	"github.com/earthquake-city/quake-alerts/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when a run is requested while one is active
var ErrRunInProgress = errors.New("monitoring run already in progress")

// ErrUnknownRegion is returned for a region name that is not configured
var ErrUnknownRegion = errors.New("unknown region")

// Service runs the fetch, dedup, rule, rate-limit and dispatch pipeline
type Service struct {
	config   *config.Config
	feed     sources.Feed
	store    storage.SeenStore
	notifier notifications.NotificationInterface
	maps     mapimage.Renderer
	now      func() time.Time

	running    sync.Mutex
	metrics    *Metrics
	lastResult *models.ProcessingResult
	mu         sync.RWMutex
}

// NewService creates a new monitoring service. maps may be nil, in which
// case no map images are attached.
func NewService(cfg *config.Config, feed sources.Feed, store storage.SeenStore, notifier notifications.NotificationInterface, maps mapimage.Renderer) *Service {
	return &Service{
		config:   cfg,
		feed:     feed,
		store:    store,
		notifier: notifier,
		maps:     maps,
		now:      time.Now,
		metrics:  newMetrics(),
	}
}

func (s *Service) alerting() *config.AlertConfig {
	if s.config.Alerting == nil {
		return config.DefaultAlertConfig()
	}
	return s.config.Alerting
}

// RunMonitoring performs one scheduled run. It returns an error when the
// run recorded run-level errors or another run is still active.
func (s *Service) RunMonitoring() error {
	if !s.running.TryLock() {
		logrus.Warn("Skipping monitoring run, previous run still in progress")
		return ErrRunInProgress
	}
	defer s.running.Unlock()

	timeout := s.config.RunTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := s.Process(ctx)
	if !result.Success() {
		return fmt.Errorf("monitoring run %s: %s", result.RunID, strings.Join(result.Errors, "; "))
	}
	return nil
}

// Process runs a complete monitoring cycle and never fails past this
// boundary: every problem is reported through the returned result.
func (s *Service) Process(ctx context.Context) *models.ProcessingResult {
	result := &models.ProcessingResult{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	log := logrus.WithField("run_id", result.RunID)
	log.Info("Starting monitoring run")

	defer func() {
		result.Duration = s.now().Sub(result.StartedAt)
		s.updateMetrics(result)
		log.WithField("duration", result.Duration.String()).Info(result.Summary())
	}()

	alerting := s.alerting()

	events, err := s.fetch(ctx, alerting)
	if err != nil {
		msg := fmt.Sprintf("Failed to fetch earthquakes: %v", err)
		log.Error(msg)
		result.Errors = append(result.Errors, msg)
		return result
	}

	result.Fetched = len(events)
	if len(events) == 0 {
		log.Info("No earthquakes found")
		return result
	}

	seen, err := s.store.GetIDs(ctx)
	if err != nil {
		msg := fmt.Sprintf("Failed to read deduplication state: %v", err)
		log.Error(msg)
		result.Errors = append(result.Errors, msg)
		return result
	}

	fresh := dedup.FilterUnseen(events, seen)
	result.New = len(fresh)
	log.Infof("%d new earthquakes (of %d total)", len(fresh), len(events))
	if len(fresh) == 0 {
		return result
	}

	decisions := rules.DecisionsFor(fresh, alerting.Channels)
	log.Infof("%d earthquakes match alert rules", len(decisions))

	limits := alerting.RateLimit
	state := ratelimit.NewState()
	limitHit := false
	var delivered []models.Event

	for _, decision := range decisions {
		attempted, succeeded := 0, 0
		log.WithFields(logrus.Fields{
			"event_id": decision.Event.ID,
			"channels": strings.Join(decision.ChannelNames(), ","),
		}).Debugf("M%.1f %s matched %d channels", decision.Event.Magnitude, decision.Event.Place, len(decision.Channels))

		for _, ch := range decision.Channels {
			check := ratelimit.Check(ch.Name, state, limits)
			if !check.Allowed {
				log.WithFields(logrus.Fields{"channel": ch.Name, "event_id": decision.Event.ID}).Warnf("Rate limited: %s", check.Reason)
				result.Skipped = append(result.Skipped, models.SkippedAlert{
					EventID: decision.Event.ID,
					Channel: ch.Name,
					Kind:    ch.Kind,
					Reason:  check.Reason,
				})
				limitHit = true
				continue
			}

			alert := s.deliver(ctx, decision.Event, ch, ch.Rule.PointsOfInterest, false)
			attempted++
			if alert.Success {
				succeeded++
				state = ratelimit.Record(ch.Name, state)
				result.AlertsSent = append(result.AlertsSent, alert)
				log.Infof("Sent alert for M%.1f %s to %s", decision.Event.Magnitude, decision.Event.Place, ch.Name)
			} else {
				result.AlertsFailed = append(result.AlertsFailed, alert)
				log.Errorf("Failed to send alert for M%.1f %s to %s: %s", decision.Event.Magnitude, decision.Event.Place, ch.Name, alert.Error)
			}
		}

		if s.shouldPersist(len(decision.Channels), attempted, succeeded) {
			delivered = append(delivered, decision.Event)
		}
	}

	if limitHit {
		report := ratelimit.FormatViolations(ratelimit.Violations(state, limits))
		if limits.FailOnLimitExceeded {
			result.Errors = append(result.Errors, report)
		}
		log.Warn(report)
	}

	stored := seen
	if len(delivered) > 0 {
		ids := dedup.IDsToPersist(delivered).Sorted()
		if err := s.store.AddIDs(ctx, ids); err != nil {
			msg := fmt.Sprintf("Failed to update deduplication state: %v", err)
			log.Error(msg)
			result.Errors = append(result.Errors, msg)
		} else {
			result.Persisted = ids
			stored = dedup.NewIDSet(ids...)
			for id := range seen {
				stored.Add(id)
			}
		}
	}

	s.expire(ctx, log, result, stored, dedup.EventIDs(events))

	return result
}

// shouldPersist applies the persistence policy to one event's outcomes.
// Under PersistAll every matched channel must have received the alert, so
// a channel skipped by the rate limiter keeps the event unpersisted and it
// is retried once the limits reset.
func (s *Service) shouldPersist(matched, attempted, succeeded int) bool {
	if attempted == 0 {
		return false
	}
	if s.config.PersistPolicy == config.PersistAny {
		return succeeded > 0
	}
	return succeeded == matched
}

func (s *Service) expire(ctx context.Context, log *logrus.Entry, result *models.ProcessingResult, stored, batch dedup.IDSet) {
	if s.config.MaxStoredIDs <= 0 {
		return
	}

	expired := dedup.IDsToExpire(stored, batch, s.config.MaxStoredIDs)
	if len(expired) == 0 {
		return
	}

	ids := expired.Sorted()
	if err := s.store.RemoveIDs(ctx, ids); err != nil {
		msg := fmt.Sprintf("Failed to expire seen ids: %v", err)
		log.Error(msg)
		result.Errors = append(result.Errors, msg)
		return
	}

	result.Expired = ids
	log.Infof("Expired %d seen ids", len(ids))
}

func (s *Service) fetch(ctx context.Context, alerting *config.AlertConfig) ([]models.Event, error) {
	end := s.now().UTC()
	q := sources.Query{
		MinMagnitude: alerting.MinFetchMagnitude,
		Start:        end.Add(-alerting.Lookback()),
		End:          end,
	}
	if bounds, ok := geo.CombineBounds(geo.RegionBounds(alerting.Regions)); ok {
		q.Bounds = bounds
	} else {
		q.Bounds = models.GeoBounds{MinLatitude: -90, MaxLatitude: 90, MinLongitude: -180, MaxLongitude: 180}
	}

	events, err := sources.FetchEvents(ctx, s.feed, q)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Fetched %d earthquakes from %s", len(events), s.feed.GetName())
	return events, nil
}

// deliver formats the event for the channel kind and hands it to the
// notifier. Failures are returned in the result, never as an error.
func (s *Service) deliver(ctx context.Context, event models.Event, ch models.AlertChannel, pois []models.PointOfInterest, test bool) models.AlertResult {
	alert := models.AlertResult{
		EventID:   event.ID,
		Magnitude: event.Magnitude,
		Channel:   ch.Name,
		Kind:      ch.Kind,
	}

	msg := s.render(ctx, event, ch, pois, test)
	if err := s.notifier.Send(ctx, ch, msg); err != nil {
		alert.Error = err.Error()
		return alert
	}

	alert.Success = true
	return alert
}

func (s *Service) render(ctx context.Context, event models.Event, ch models.AlertChannel, pois []models.PointOfInterest, test bool) notifications.Message {
	opts := formatter.Options{
		Nearby: geo.NearbyPOIs(event, pois, geo.DefaultNearbyKm),
		Test:   test,
	}

	msg := notifications.Message{Subject: formatter.Summary(event)}
	if test {
		msg.Subject = formatter.TestMarker + " " + msg.Subject
	}

	switch ch.Kind.Format() {
	case models.FormatRich:
		rich := formatter.RichMessage(event, opts)
		msg.Rich = &rich
		msg.Text = rich.Text
	case models.FormatShort:
		msg.Text = formatter.ShortText(event, opts)
	default:
		msg.Text = formatter.LongText(event, opts)
	}

	if s.maps != nil && ch.Kind.SupportsImage() {
		image, err := s.maps.Render(ctx, event, pois)
		if err != nil {
			logrus.Warnf("Failed to generate map image for %s: %v (continuing without image)", event.ID, err)
		} else {
			msg.Image = image
		}
	}

	return msg
}

// Channels returns the configured alert channels
func (s *Service) Channels() []models.AlertChannel {
	return s.alerting().Channels
}

// SendTestAlert sends event to each channel marked as a test. Rules, the
// rate limiter and the seen-id store are bypassed.
func (s *Service) SendTestAlert(ctx context.Context, event models.Event, channels []models.AlertChannel) []models.AlertResult {
	pois := s.alerting().PointsOfInterest
	results := make([]models.AlertResult, 0, len(channels))

	for _, ch := range channels {
		logrus.Infof("Sending test alert to %s channel: %s", ch.Kind, ch.Name)
		alert := s.deliver(ctx, event, ch, pois, true)
		if alert.Success {
			logrus.Infof("Test alert sent to %s", ch.Name)
		} else {
			logrus.Errorf("Failed to send test alert to %s: %s", ch.Name, alert.Error)
		}
		results = append(results, alert)
	}

	return results
}

// PreviewTestAlert renders the test messages without sending them
func (s *Service) PreviewTestAlert(ctx context.Context, event models.Event, channels []models.AlertChannel) map[string]notifications.Message {
	pois := s.alerting().PointsOfInterest
	out := make(map[string]notifications.Message, len(channels))
	for _, ch := range channels {
		out[ch.Name] = s.render(ctx, event, ch, pois, true)
	}
	return out
}

// TestEvent builds a synthetic event near San Ramon for test alerts
func TestEvent(now time.Time, magnitude float64) models.Event {
	return models.Event{
		ID:        "test-earthquake-" + now.UTC().Format("20060102150405"),
		Magnitude: magnitude,
		Place:     "8km NE of San Ramon, CA",
		Time:      now.UTC(),
		Latitude:  37.8199,
		Longitude: -121.9280,
		DepthKm:   10.0,
		URL:       "https://earthquake.usgs.gov/earthquakes/map/",
		Alert:     models.AlertYellow,
		MagType:   "ml",
	}.With(models.WithFelt(1250))
}

// RecentEvents fetches events for one monitoring region without touching
// the seen-id store.
func (s *Service) RecentEvents(ctx context.Context, region string, minMagnitude *float64, window time.Duration) ([]models.Event, error) {
	r, ok := s.alerting().Region(region)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}

	end := s.now().UTC()
	return sources.FetchEvents(ctx, s.feed, sources.Query{
		Bounds:       r.Bounds,
		MinMagnitude: minMagnitude,
		Start:        end.Add(-window),
		End:          end,
	})
}

// Regions lists the configured monitoring regions
func (s *Service) Regions() []models.MonitoringRegion {
	return s.alerting().Regions
}
