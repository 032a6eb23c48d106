package geo

import (
	"testing"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bayArea = models.GeoBounds{MinLatitude: 37.0, MaxLatitude: 38.5, MinLongitude: -123.0, MaxLongitude: -121.5}

func TestDistance(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		expected  float64
		tolerance float64
	}{
		{"San Francisco to Los Angeles", 37.7749, -122.4194, 34.0522, -118.2437, 559, 559 * 0.02},
		{"San Ramon to Oakland", 37.7799, -121.9780, 37.8044, -122.2712, 25.9, 25.9 * 0.02},
		{"New York to London", 40.7128, -74.0060, 51.5074, -0.1278, 5570, 5570 * 0.02},
		{"one degree of latitude", 0, 0, 1, 0, 111.19, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.tolerance)
		})
	}
}

func TestDistance_IdentityAndSymmetry(t *testing.T) {
	points := [][2]float64{{37.78, -121.98}, {-33.87, 151.21}, {0, 0}, {89.9, 179.9}}

	for _, a := range points {
		assert.Equal(t, 0.0, Distance(a[0], a[1], a[0], a[1]))
		for _, b := range points {
			assert.InDelta(t, Distance(a[0], a[1], b[0], b[1]), Distance(b[0], b[1], a[0], a[1]), 1e-9)
		}
	}
}

func TestDistance_Antipodal(t *testing.T) {
	d := Distance(0, 0, 0, 180)
	assert.InDelta(t, 20015.0, d, 5)
}

func TestContains(t *testing.T) {
	tests := []struct {
		name     string
		lat      float64
		lon      float64
		expected bool
	}{
		{"inside", 37.8, -122.0, true},
		{"min corner", 37.0, -123.0, true},
		{"max corner", 38.5, -121.5, true},
		{"north of box", 38.51, -122.0, false},
		{"west of box", 37.8, -123.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Contains(bayArea, tt.lat, tt.lon))
		})
	}
}

func TestWithinRadius(t *testing.T) {
	d := Distance(37.78, -121.98, 37.80, -122.27)

	assert.True(t, WithinRadius(37.78, -121.98, 37.80, -122.27, d))
	assert.False(t, WithinRadius(37.78, -121.98, 37.80, -122.27, d-0.01))
}

func TestNearbyPOIs(t *testing.T) {
	event := models.Event{ID: "ev1", Latitude: 37.78, Longitude: -121.98}
	pois := []models.PointOfInterest{
		{Name: "Oakland", Latitude: 37.8044, Longitude: -122.2712, RadiusKm: 30},
		{Name: "San Ramon", Latitude: 37.7799, Longitude: -121.9780, RadiusKm: 20},
		{Name: "Los Angeles", Latitude: 34.0522, Longitude: -118.2437, RadiusKm: 50},
		{Name: "San Jose", Latitude: 37.3382, Longitude: -121.8863, RadiusKm: 40},
	}

	nearby := NearbyPOIs(event, pois, DefaultNearbyKm)

	require.Len(t, nearby, 3)
	assert.Equal(t, "San Ramon", nearby[0].POI.Name)
	assert.Equal(t, "Oakland", nearby[1].POI.Name)
	assert.Equal(t, "San Jose", nearby[2].POI.Name)
	for i := 1; i < len(nearby); i++ {
		assert.LessOrEqual(t, nearby[i-1].DistanceKm, nearby[i].DistanceKm)
	}
}

func TestNearbyPOIs_TiesKeepInputOrder(t *testing.T) {
	event := models.Event{Latitude: 0, Longitude: 0}
	pois := []models.PointOfInterest{
		{Name: "east", Latitude: 0, Longitude: 0.5},
		{Name: "west", Latitude: 0, Longitude: -0.5},
		{Name: "north", Latitude: 0.3, Longitude: 0},
	}

	nearby := NearbyPOIs(event, pois, 100)

	require.Len(t, nearby, 3)
	assert.Equal(t, "north", nearby[0].POI.Name)
	assert.Equal(t, "east", nearby[1].POI.Name)
	assert.Equal(t, "west", nearby[2].POI.Name)
}

func TestNearbyPOIs_Empty(t *testing.T) {
	assert.Empty(t, NearbyPOIs(models.Event{}, nil, 100))
}

func TestIsNearPOI(t *testing.T) {
	poi := models.PointOfInterest{Name: "San Ramon", Latitude: 37.7799, Longitude: -121.9780, RadiusKm: 10}

	assert.True(t, IsNearPOI(models.Event{Latitude: 37.80, Longitude: -121.95}, poi))
	assert.False(t, IsNearPOI(models.Event{Latitude: 38.50, Longitude: -121.95}, poi))
}

func TestFilterByBounds(t *testing.T) {
	events := []models.Event{
		{ID: "in1", Latitude: 37.5, Longitude: -122.0},
		{ID: "out", Latitude: 34.0, Longitude: -118.0},
		{ID: "in2", Latitude: 38.0, Longitude: -122.5},
	}

	filtered := FilterByBounds(events, bayArea)

	require.Len(t, filtered, 2)
	assert.Equal(t, "in1", filtered[0].ID)
	assert.Equal(t, "in2", filtered[1].ID)
}

func TestFilterByProximity(t *testing.T) {
	events := []models.Event{
		{ID: "near", Latitude: 37.79, Longitude: -121.97},
		{ID: "far", Latitude: 34.0, Longitude: -118.0},
	}

	filtered := FilterByProximity(events, 37.78, -121.98, 10)

	require.Len(t, filtered, 1)
	assert.Equal(t, "near", filtered[0].ID)
}

func TestCombineBounds(t *testing.T) {
	_, ok := CombineBounds(nil)
	assert.False(t, ok)

	combined, ok := CombineBounds([]models.GeoBounds{
		{MinLatitude: 37.3, MaxLatitude: 38.3, MinLongitude: -122.5, MaxLongitude: -121.5},
		{MinLatitude: 33.5, MaxLatitude: 34.8, MinLongitude: -119.0, MaxLongitude: -117.0},
	})

	require.True(t, ok)
	assert.Equal(t, models.GeoBounds{MinLatitude: 33.5, MaxLatitude: 38.3, MinLongitude: -122.5, MaxLongitude: -117.0}, combined)
}

func TestRegionBounds(t *testing.T) {
	regions := []models.MonitoringRegion{{Name: "bay", Bounds: bayArea}}
	assert.Equal(t, []models.GeoBounds{bayArea}, RegionBounds(regions))
}
