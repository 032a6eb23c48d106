package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/earthquake-city/quake-alerts/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMonitor is a mock implementation of Monitor
type MockMonitor struct {
	mock.Mock
}

func (m *MockMonitor) RunMonitoring() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMonitor) GetMetrics() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockMonitor) RecentEvents(ctx context.Context, region string, minMagnitude *float64, window time.Duration) ([]models.Event, error) {
	args := m.Called(ctx, region, minMagnitude, window)
	events, _ := args.Get(0).([]models.Event)
	return events, args.Error(1)
}

func (m *MockMonitor) Regions() []models.MonitoringRegion {
	args := m.Called()
	regions, _ := args.Get(0).([]models.MonitoringRegion)
	return regions
}

func serve(t *testing.T, monitor Monitor, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(monitor).ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, &MockMonitor{}, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestStatus(t *testing.T) {
	m := &MockMonitor{}
	m.On("GetMetrics").Return(`{"total_runs": 3}`)

	rec := serve(t, m, http.MethodGet, "/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_runs": 3}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	rec := serve(t, &MockMonitor{}, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTrigger(t *testing.T) {
	m := &MockMonitor{}
	done := make(chan struct{})
	m.On("RunMonitoring").Return(errors.New("boom")).Run(func(mock.Arguments) { close(done) })

	rec := serve(t, m, http.MethodPost, "/trigger")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitoring run was not triggered")
	}

	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, m, http.MethodGet, "/trigger").Code)
}

func TestRegions(t *testing.T) {
	m := &MockMonitor{}
	m.On("Regions").Return([]models.MonitoringRegion{{Name: "Bay Area"}})

	rec := serve(t, m, http.MethodGet, "/api/regions")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Bay Area"`)
}

func TestEarthquakes(t *testing.T) {
	event := models.Event{ID: "nc1", Magnitude: 3.4, Place: "Berkeley", HasShakemap: true}
	minMag := 2.5

	tests := []struct {
		name     string
		target   string
		setup    func(m *MockMonitor)
		status   int
		contains string
	}{
		{
			name:   "defaults",
			target: "/api/earthquakes?region=bay",
			setup: func(m *MockMonitor) {
				m.On("RecentEvents", mock.Anything, "bay", (*float64)(nil), 24*time.Hour).Return([]models.Event{event}, nil)
			},
			status:   http.StatusOK,
			contains: `"has_shakemap":true`,
		},
		{
			name:   "explicit filters",
			target: "/api/earthquakes?region=bay&min_magnitude=2.5&hours=6",
			setup: func(m *MockMonitor) {
				m.On("RecentEvents", mock.Anything, "bay", &minMag, 6*time.Hour).Return(nil, nil)
			},
			status:   http.StatusOK,
			contains: `"earthquakes":[]`,
		},
		{
			name:     "missing region",
			target:   "/api/earthquakes",
			status:   http.StatusBadRequest,
			contains: "region is required",
		},
		{
			name:     "bad magnitude",
			target:   "/api/earthquakes?region=bay&min_magnitude=big",
			status:   http.StatusBadRequest,
			contains: "min_magnitude",
		},
		{
			name:     "hours out of range",
			target:   "/api/earthquakes?region=bay&hours=500",
			status:   http.StatusBadRequest,
			contains: "hours must be between",
		},
		{
			name:   "unknown region",
			target: "/api/earthquakes?region=atlantis",
			setup: func(m *MockMonitor) {
				m.On("RecentEvents", mock.Anything, "atlantis", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("%w: %q", monitoring.ErrUnknownRegion, "atlantis"))
			},
			status:   http.StatusNotFound,
			contains: "unknown region",
		},
		{
			name:   "feed failure",
			target: "/api/earthquakes?region=bay",
			setup: func(m *MockMonitor) {
				m.On("RecentEvents", mock.Anything, "bay", mock.Anything, mock.Anything).
					Return(nil, errors.New("USGS returned status 503"))
			},
			status:   http.StatusBadGateway,
			contains: "failed to fetch earthquakes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockMonitor{}
			if tt.setup != nil {
				tt.setup(m)
			}

			rec := serve(t, m, http.MethodGet, tt.target)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
			m.AssertExpectations(t)
		})
	}
}
