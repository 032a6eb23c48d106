package app

import (
	"testing"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/config"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPreview(t *testing.T) {
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	events := []models.Event{
		{ID: "bay", Magnitude: 3.4, Place: "Berkeley", Time: at, Latitude: 37.87, Longitude: -122.27},
		{ID: "la", Magnitude: 4.8, Place: "Pasadena", Time: at.Add(-time.Hour), Latitude: 34.15, Longitude: -118.14},
		{ID: "ramon", Magnitude: 2.1, Place: "San Ramon", Time: at.Add(-2 * time.Hour), Latitude: 37.78, Longitude: -121.98},
	}

	strong := models.DefaultAlertRule()
	strong.MinMagnitude = 4.0

	alerting := config.DefaultAlertConfig()
	alerting.Regions = []models.MonitoringRegion{
		{Name: "Bay Area", Bounds: models.GeoBounds{MinLatitude: 37.0, MaxLatitude: 38.5, MinLongitude: -123.0, MaxLongitude: -121.5}},
	}
	alerting.PointsOfInterest = []models.PointOfInterest{
		{Name: "San Ramon", Latitude: 37.78, Longitude: -121.98, RadiusKm: 50},
	}
	alerting.Channels = []models.AlertChannel{
		{Name: "all", Kind: models.KindSlack, Rule: models.DefaultAlertRule()},
		{Name: "strong", Kind: models.KindSlack, Rule: strong},
	}

	p := BuildPreview(events, alerting)

	assert.Equal(t, []Count{{Name: "Bay Area", Count: 2}}, p.Regions)
	assert.Equal(t, []Count{{Name: "San Ramon", Count: 2}}, p.POIs)
	assert.Equal(t, []Count{{Name: "all", Count: 3}, {Name: "strong", Count: 1}}, p.Channels)
	require.NotNil(t, p.Largest)
	assert.Equal(t, "la", p.Largest.ID)
	assert.Contains(t, p.Summary.Text, "3 earthquake(s)")
}

func TestBuildPreview_NoEvents(t *testing.T) {
	p := BuildPreview(nil, config.DefaultAlertConfig())

	assert.Nil(t, p.Largest)
	assert.Empty(t, p.Channels)
	assert.Equal(t, "No earthquakes to report.", p.Summary.Text)
}
