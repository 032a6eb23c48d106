// Package formatter renders earthquake events into channel payloads.
//
// Every renderer shares the same severity tiers so a quake is described the
// same way on Slack, Twitter/X, WhatsApp and email.
package formatter

import (
	"fmt"
	"math"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
)

const (
	// SiteURL is the fixed landing page linked from every alert
	SiteURL = "https://earthquake.city/sanramon?from=alert"

	// TestMarker is prefixed to test alerts
	TestMarker = "[TEST]"

	usgsEventURL = "https://earthquake.usgs.gov/earthquakes/eventpage/%s/shakemap"
	mapsURL      = "https://www.google.com/maps?q=%v,%v"
)

// PST is a fixed UTC-8 zone without daylight saving
var PST = time.FixedZone("PST", -8*60*60)

// Options carries the per-send context a renderer may use
type Options struct {
	Nearby []models.NearbyPOI
	Test   bool
}

type tier struct {
	min      float64
	label    string
	emoji    string
	headline string
}

var tiers = []tier{
	{min: 8.0, label: "Great", emoji: "🚨", headline: "MAJOR "},
	{min: 7.0, label: "Major", emoji: "🚨", headline: "MAJOR "},
	{min: 6.0, label: "Strong", emoji: "⚠️", headline: "MAJOR "},
	{min: 5.0, label: "Moderate", emoji: "🔶", headline: "STRONG "},
	{min: 4.0, label: "Light", emoji: "🔸"},
	{min: 3.0, label: "Minor", emoji: "🔹"},
	{min: math.Inf(-1), label: "Micro", emoji: "🔹"},
}

func tierFor(magnitude float64) tier {
	for _, t := range tiers {
		if magnitude >= t.min {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// SeverityLabel returns the descriptive label for a magnitude
func SeverityLabel(magnitude float64) string {
	return tierFor(magnitude).label
}

// MagnitudeEmoji returns the severity emoji for a magnitude
func MagnitudeEmoji(magnitude float64) string {
	return tierFor(magnitude).emoji
}

var alertIcons = map[models.AlertLevel]string{
	models.AlertGreen:  "🟢",
	models.AlertYellow: "🟡",
	models.AlertOrange: "🟠",
	models.AlertRed:    "🔴",
}

// AlertIcon returns the coloured circle for a PAGER level
func AlertIcon(level models.AlertLevel) string {
	if icon, ok := alertIcons[level]; ok {
		return icon
	}
	return "⚪"
}

// ShakemapURL returns the USGS shakemap page for an event
func ShakemapURL(e models.Event) string {
	return fmt.Sprintf(usgsEventURL, e.ID)
}

// MapsURL returns a Google Maps link centred on the event
func MapsURL(e models.Event) string {
	return fmt.Sprintf(mapsURL, e.Latitude, e.Longitude)
}

// Summary returns a one-line description such as
// "M4.5 - 10km N of San Ramon at 2024-01-15 04:00:00 PST (depth: 10.5km)".
func Summary(e models.Event) string {
	return fmt.Sprintf("M%.1f - %s at %s (depth: %.1fkm)",
		e.Magnitude, e.Place, e.Time.In(PST).Format("2006-01-02 15:04:05 PST"), e.DepthKm)
}

func testPrefix(test bool) string {
	if test {
		return TestMarker + " "
	}
	return ""
}
