package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertLevel is the PAGER alert tag attached to an event by the feed
type AlertLevel string

const (
	AlertNone   AlertLevel = ""
	AlertGreen  AlertLevel = "green"
	AlertYellow AlertLevel = "yellow"
	AlertOrange AlertLevel = "orange"
	AlertRed    AlertLevel = "red"
)

// ParseAlertLevel maps a raw feed value onto the known levels. Unknown
// values are treated as absent.
func ParseAlertLevel(raw string) AlertLevel {
	switch AlertLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case AlertGreen:
		return AlertGreen
	case AlertYellow:
		return AlertYellow
	case AlertOrange:
		return AlertOrange
	case AlertRed:
		return AlertRed
	default:
		return AlertNone
	}
}

// IsHigh reports whether the level warrants calling out in short messages
func (a AlertLevel) IsHigh() bool {
	return a == AlertOrange || a == AlertRed
}

// Event represents a single seismic event parsed from the feed.
// Events are passed by value and never modified in place; use With to
// derive a changed copy.
type Event struct {
	ID          string     `json:"id"`
	Magnitude   float64    `json:"magnitude"`
	Place       string     `json:"place"`
	Time        time.Time  `json:"time"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	DepthKm     float64    `json:"depth_km"`
	URL         string     `json:"url"`
	Felt        *int       `json:"felt,omitempty"`
	Alert       AlertLevel `json:"alert,omitempty"`
	Tsunami     bool       `json:"tsunami"`
	MagType     string     `json:"mag_type"`
	HasShakemap bool       `json:"has_shakemap"`
}

// FeltCount returns the number of felt reports, zero when absent
func (e Event) FeltCount() int {
	if e.Felt == nil {
		return 0
	}
	return *e.Felt
}

// EventOption overrides one field of a copied Event
type EventOption func(*Event)

// With returns a copy of the event with the given overrides applied.
func (e Event) With(opts ...EventOption) Event {
	out := e
	if e.Felt != nil {
		felt := *e.Felt
		out.Felt = &felt
	}
	for _, opt := range opts {
		opt(&out)
	}
	return out
}

func WithID(id string) EventOption { return func(e *Event) { e.ID = id } }

func WithMagnitude(mag float64) EventOption { return func(e *Event) { e.Magnitude = mag } }

func WithPlace(place string) EventOption { return func(e *Event) { e.Place = place } }

func WithTime(t time.Time) EventOption { return func(e *Event) { e.Time = t } }

func WithCoordinates(lat, lon float64) EventOption {
	return func(e *Event) {
		e.Latitude = lat
		e.Longitude = lon
	}
}

func WithDepth(km float64) EventOption { return func(e *Event) { e.DepthKm = km } }

func WithURL(url string) EventOption { return func(e *Event) { e.URL = url } }

// WithFelt sets the felt-report count; a negative value clears it.
func WithFelt(felt int) EventOption {
	return func(e *Event) {
		if felt < 0 {
			e.Felt = nil
			return
		}
		e.Felt = &felt
	}
}

func WithAlert(level AlertLevel) EventOption { return func(e *Event) { e.Alert = level } }

func WithTsunami(tsunami bool) EventOption { return func(e *Event) { e.Tsunami = tsunami } }

func WithShakemap(has bool) EventOption { return func(e *Event) { e.HasShakemap = has } }

// GeoBounds is an inclusive latitude/longitude rectangle
type GeoBounds struct {
	MinLatitude  float64 `json:"min_latitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLongitude float64 `json:"max_longitude"`
}

func (b GeoBounds) String() string {
	return fmt.Sprintf("lat[%.2f, %.2f] lon[%.2f, %.2f]", b.MinLatitude, b.MaxLatitude, b.MinLongitude, b.MaxLongitude)
}

// PointOfInterest is a named location that triggers proximity alerts
type PointOfInterest struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"alert_radius_km"`
}

// NearbyPOI pairs a point of interest with its distance from an event
type NearbyPOI struct {
	POI        PointOfInterest `json:"poi"`
	DistanceKm float64         `json:"distance_km"`
}

// MonitoringRegion is a named area that scopes the upstream fetch
type MonitoringRegion struct {
	Name   string    `json:"name"`
	Bounds GeoBounds `json:"bounds"`
}

// AlertRule decides whether an event is relevant to one channel
type AlertRule struct {
	MinMagnitude     float64           `json:"min_magnitude"`
	MaxMagnitude     *float64          `json:"max_magnitude,omitempty"`
	Bounds           *GeoBounds        `json:"bounds,omitempty"`
	PointsOfInterest []PointOfInterest `json:"points_of_interest,omitempty"`
	AlertOnTsunami   bool              `json:"alert_on_tsunami"`
	AlertOnFelt      bool              `json:"alert_on_felt"`
	FeltThreshold    int               `json:"felt_threshold"`
}

// DefaultAlertRule returns a rule with the documented defaults
func DefaultAlertRule() AlertRule {
	return AlertRule{
		MinMagnitude:   0,
		AlertOnTsunami: true,
		AlertOnFelt:    false,
		FeltThreshold:  10,
	}
}

// ChannelKind identifies the delivery backend of a channel
type ChannelKind string

const (
	KindSlack    ChannelKind = "slack"
	KindTwitter  ChannelKind = "twitter"
	KindWhatsApp ChannelKind = "whatsapp"
	KindEmail    ChannelKind = "email"
)

// MessageFormat is the rendering class a channel kind uses
type MessageFormat string

const (
	FormatRich  MessageFormat = "rich-message"
	FormatShort MessageFormat = "short-text"
	FormatLong  MessageFormat = "long-text"
)

// Format returns the message format used for the kind
func (k ChannelKind) Format() MessageFormat {
	switch k {
	case KindSlack:
		return FormatRich
	case KindTwitter:
		return FormatShort
	default:
		return FormatLong
	}
}

// SupportsImage reports whether the kind can carry a map attachment
func (k ChannelKind) SupportsImage() bool {
	return k == KindTwitter || k == KindEmail
}

// Valid reports whether the kind is one the dispatcher can route
func (k ChannelKind) Valid() bool {
	switch k {
	case KindSlack, KindTwitter, KindWhatsApp, KindEmail:
		return true
	}
	return false
}

// TwitterCredentials holds the OAuth 1.0a user-context keys
type TwitterCredentials struct {
	APIKey            string `json:"-"`
	APISecret         string `json:"-"`
	AccessToken       string `json:"-"`
	AccessTokenSecret string `json:"-"`
}

// Complete reports whether every key is present
func (c TwitterCredentials) Complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

// WhatsAppCredentials holds a Twilio account and its recipients
type WhatsAppCredentials struct {
	AccountSID string   `json:"-"`
	AuthToken  string   `json:"-"`
	FromNumber string   `json:"from_number"`
	ToNumbers  []string `json:"to_numbers"`
}

// Complete reports whether the account can send to at least one recipient
func (c WhatsAppCredentials) Complete() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != "" && len(c.ToNumbers) > 0
}

// EmailTarget lists the recipients of an email channel
type EmailTarget struct {
	Recipients []string `json:"recipients"`
}

// AlertChannel is a configured notification destination with its own rule
type AlertChannel struct {
	Name       string               `json:"name"`
	Kind       ChannelKind          `json:"type"`
	WebhookURL string               `json:"-"`
	Twitter    *TwitterCredentials  `json:"-"`
	WhatsApp   *WhatsAppCredentials `json:"-"`
	Email      *EmailTarget         `json:"email,omitempty"`
	Rule       AlertRule            `json:"rules"`
}

// AlertResult records the outcome of one delivery attempt
type AlertResult struct {
	EventID   string      `json:"event_id"`
	Magnitude float64     `json:"magnitude"`
	Channel   string      `json:"channel"`
	Kind      ChannelKind `json:"kind"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
}

// SkippedAlert records a send that the rate limiter blocked
type SkippedAlert struct {
	EventID string      `json:"event_id"`
	Channel string      `json:"channel"`
	Kind    ChannelKind `json:"kind"`
	Reason  string      `json:"reason"`
}

// ProcessingResult summarises one monitoring run
type ProcessingResult struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
	Fetched      int            `json:"fetched"`
	New          int            `json:"new"`
	AlertsSent   []AlertResult  `json:"alerts_sent"`
	AlertsFailed []AlertResult  `json:"alerts_failed"`
	Skipped      []SkippedAlert `json:"skipped,omitempty"`
	Persisted    []string       `json:"persisted,omitempty"`
	Expired      []string       `json:"expired,omitempty"`
	Errors       []string       `json:"errors,omitempty"`
}

// Success reports whether the run finished without run-level errors
func (r *ProcessingResult) Success() bool {
	return len(r.Errors) == 0
}

// Summary returns a one-line description of the run
func (r *ProcessingResult) Summary() string {
	return fmt.Sprintf("Fetched %d earthquakes, %d new, %d alerts sent, %d failed",
		r.Fetched, r.New, len(r.AlertsSent), len(r.AlertsFailed))
}
