package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/earthquake-city/quake-alerts/internal/monitoring"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	defaultHours = 24
	maxHours     = 168
)

// Monitor is the part of the monitoring service exposed over HTTP
type Monitor interface {
	RunMonitoring() error
	GetMetrics() string
	RecentEvents(ctx context.Context, region string, minMagnitude *float64, window time.Duration) ([]models.Event, error)
	Regions() []models.MonitoringRegion
}

var _ Monitor = (*monitoring.Service)(nil)

// NewRouter builds the HTTP routes for health checks, metrics and queries
func NewRouter(monitor Monitor) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/status", statusHandler(monitor)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(monitor)).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/regions", regionsHandler(monitor)).Methods("GET")
	api.HandleFunc("/earthquakes", earthquakesHandler(monitor)).Methods("GET")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func statusHandler(monitor Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(monitor.GetMetrics()))
	}
}

func triggerHandler(monitor Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := monitor.RunMonitoring(); err != nil {
				logrus.Errorf("Manual monitoring trigger failed: %v", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Monitoring triggered successfully"})
	}
}

func regionsHandler(monitor Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		regions := monitor.Regions()
		if regions == nil {
			regions = []models.MonitoringRegion{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"regions": regions})
	}
}

type earthquakesResponse struct {
	Region       string         `json:"region"`
	Hours        int            `json:"hours"`
	MinMagnitude *float64       `json:"min_magnitude,omitempty"`
	Count        int            `json:"count"`
	Earthquakes  []models.Event `json:"earthquakes"`
}

func earthquakesHandler(monitor Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		region := q.Get("region")
		if region == "" {
			writeError(w, http.StatusBadRequest, "region is required")
			return
		}

		var minMagnitude *float64
		if raw := q.Get("min_magnitude"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 {
				writeError(w, http.StatusBadRequest, "min_magnitude must be a non-negative number")
				return
			}
			minMagnitude = &v
		}

		hours := defaultHours
		if raw := q.Get("hours"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 1 || v > maxHours {
				writeError(w, http.StatusBadRequest, "hours must be between 1 and 168")
				return
			}
			hours = v
		}

		events, err := monitor.RecentEvents(r.Context(), region, minMagnitude, time.Duration(hours)*time.Hour)
		if err != nil {
			if errors.Is(err, monitoring.ErrUnknownRegion) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			logrus.Errorf("Failed to fetch earthquakes for %s: %v", region, err)
			writeError(w, http.StatusBadGateway, "failed to fetch earthquakes")
			return
		}
		if events == nil {
			events = []models.Event{}
		}

		writeJSON(w, http.StatusOK, earthquakesResponse{
			Region:       region,
			Hours:        hours,
			MinMagnitude: minMagnitude,
			Count:        len(events),
			Earthquakes:  events,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
