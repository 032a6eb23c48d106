package geo

import (
	"math"
	"sort"

	"github.com/earthquake-city/quake-alerts/internal/models"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula
const EarthRadiusKm = 6371.0

// DefaultNearbyKm is the search window used when listing nearby points of interest
const DefaultNearbyKm = 100.0

// Distance returns the great-circle distance in kilometres between two points
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push a fractionally past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Contains reports whether the point lies inside the bounds, edges included
func Contains(b models.GeoBounds, lat, lon float64) bool {
	return lat >= b.MinLatitude && lat <= b.MaxLatitude &&
		lon >= b.MinLongitude && lon <= b.MaxLongitude
}

// WithinRadius reports whether the point is at most radiusKm from the center
func WithinRadius(lat, lon, centerLat, centerLon, radiusKm float64) bool {
	return Distance(lat, lon, centerLat, centerLon) <= radiusKm
}

// DistanceToPOI returns the distance from an event to a point of interest
func DistanceToPOI(e models.Event, poi models.PointOfInterest) float64 {
	return Distance(e.Latitude, e.Longitude, poi.Latitude, poi.Longitude)
}

// IsNearPOI reports whether the event falls within the point's alert radius
func IsNearPOI(e models.Event, poi models.PointOfInterest) bool {
	return WithinRadius(e.Latitude, e.Longitude, poi.Latitude, poi.Longitude, poi.RadiusKm)
}

// NearbyPOIs returns the points within maxKm of the event, nearest first.
// Equal distances keep their input order.
func NearbyPOIs(e models.Event, pois []models.PointOfInterest, maxKm float64) []models.NearbyPOI {
	var nearby []models.NearbyPOI
	for _, poi := range pois {
		d := DistanceToPOI(e, poi)
		if d <= maxKm {
			nearby = append(nearby, models.NearbyPOI{POI: poi, DistanceKm: d})
		}
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby
}

// FilterByBounds keeps the events inside the bounds, preserving order
func FilterByBounds(events []models.Event, b models.GeoBounds) []models.Event {
	var out []models.Event
	for _, e := range events {
		if Contains(b, e.Latitude, e.Longitude) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByProximity keeps the events within radiusKm of the center
func FilterByProximity(events []models.Event, centerLat, centerLon, radiusKm float64) []models.Event {
	var out []models.Event
	for _, e := range events {
		if WithinRadius(e.Latitude, e.Longitude, centerLat, centerLon, radiusKm) {
			out = append(out, e)
		}
	}
	return out
}

// CombineBounds returns the smallest rectangle covering every box.
// The second return value is false when boxes is empty.
func CombineBounds(boxes []models.GeoBounds) (models.GeoBounds, bool) {
	if len(boxes) == 0 {
		return models.GeoBounds{}, false
	}

	out := boxes[0]
	for _, b := range boxes[1:] {
		out.MinLatitude = math.Min(out.MinLatitude, b.MinLatitude)
		out.MaxLatitude = math.Max(out.MaxLatitude, b.MaxLatitude)
		out.MinLongitude = math.Min(out.MinLongitude, b.MinLongitude)
		out.MaxLongitude = math.Max(out.MaxLongitude, b.MaxLongitude)
	}
	return out, true
}

// RegionBounds extracts the bounds of each monitoring region
func RegionBounds(regions []models.MonitoringRegion) []models.GeoBounds {
	boxes := make([]models.GeoBounds, 0, len(regions))
	for _, r := range regions {
		boxes = append(boxes, r.Bounds)
	}
	return boxes
}
