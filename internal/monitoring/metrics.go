package monitoring

import (
	"encoding/json"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quake_alerts",
		Subsystem: "monitor",
		Name:      "runs_total",
		Help:      "Total number of monitoring runs by status.",
	}, []string{"status"}) // status: ok, error

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quake_alerts",
		Subsystem: "monitor",
		Name:      "events_total",
		Help:      "Total number of earthquakes seen by stage.",
	}, []string{"stage"}) // stage: fetched, new, persisted, expired

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quake_alerts",
		Subsystem: "delivery",
		Name:      "alerts_total",
		Help:      "Total number of alerts by channel and outcome.",
	}, []string{"channel", "kind", "outcome"}) // outcome: sent, failed, skipped

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quake_alerts",
		Subsystem: "monitor",
		Name:      "run_duration_seconds",
		Help:      "Duration of monitoring runs.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Metrics holds monitoring metrics
type Metrics struct {
	TotalRuns       int            `json:"total_runs"`
	LastRun         time.Time      `json:"last_run"`
	LastRunID       string         `json:"last_run_id"`
	LastRunDuration string         `json:"last_run_duration"`
	LastSummary     string         `json:"last_summary"`
	AlertsSent      int            `json:"alerts_sent"`
	AlertsFailed    int            `json:"alerts_failed"`
	AlertsSkipped   int            `json:"alerts_skipped"`
	ChannelMetrics  map[string]int `json:"channel_metrics"`
	ErrorCount      int            `json:"error_count"`
	LastErrors      []string       `json:"last_errors,omitempty"`
}

func newMetrics() *Metrics {
	return &Metrics{ChannelMetrics: make(map[string]int)}
}

func (s *Service) updateMetrics(result *models.ProcessingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalRuns++
	s.metrics.LastRun = result.StartedAt
	s.metrics.LastRunID = result.RunID
	s.metrics.LastRunDuration = result.Duration.String()
	s.metrics.LastSummary = result.Summary()
	s.metrics.AlertsSent += len(result.AlertsSent)
	s.metrics.AlertsFailed += len(result.AlertsFailed)
	s.metrics.AlertsSkipped += len(result.Skipped)
	s.metrics.ErrorCount += len(result.Errors)
	s.metrics.LastErrors = result.Errors

	for _, a := range result.AlertsSent {
		s.metrics.ChannelMetrics[a.Channel]++
	}
	s.lastResult = result

	status := "ok"
	if !result.Success() {
		status = "error"
	}
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(result.Duration.Seconds())

	eventsTotal.WithLabelValues("fetched").Add(float64(result.Fetched))
	eventsTotal.WithLabelValues("new").Add(float64(result.New))
	eventsTotal.WithLabelValues("persisted").Add(float64(len(result.Persisted)))
	eventsTotal.WithLabelValues("expired").Add(float64(len(result.Expired)))

	for _, a := range result.AlertsSent {
		alertsTotal.WithLabelValues(a.Channel, string(a.Kind), "sent").Inc()
	}
	for _, a := range result.AlertsFailed {
		alertsTotal.WithLabelValues(a.Channel, string(a.Kind), "failed").Inc()
	}
	for _, sk := range result.Skipped {
		alertsTotal.WithLabelValues(sk.Channel, string(sk.Kind), "skipped").Inc()
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// LastResult returns the result of the most recent run, or nil
func (s *Service) LastResult() *models.ProcessingResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastResult
}
