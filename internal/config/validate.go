package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/earthquake-city/quake-alerts/internal/models"
)

// Severity classifies a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding
type Issue struct {
	Field    string
	Message  string
	Severity Severity
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// ValidationResult collects every issue found in a configuration
type ValidationResult struct {
	Issues []Issue
}

// Valid reports whether there are no error-level issues
func (r ValidationResult) Valid() bool {
	return len(r.Errors()) == 0
}

func (r ValidationResult) Errors() []Issue {
	return r.filter(SeverityError)
}

func (r ValidationResult) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r ValidationResult) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Err joins the error-level issues, or returns nil
func (r ValidationResult) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.String())
	}
	return errors.New("invalid alerting configuration: " + strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(sev Severity, field, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Field: field, Message: fmt.Sprintf(format, args...), Severity: sev})
}

// Validate checks an alerting configuration for errors and warnings
func Validate(cfg *AlertConfig) ValidationResult {
	var r ValidationResult

	if cfg.LookbackHours <= 0 {
		r.add(SeverityError, "lookback_hours", "must be positive, got %d", cfg.LookbackHours)
	}
	if cfg.RateLimit.MaxPerRun < 0 || cfg.RateLimit.MaxPerChannel < 0 {
		r.add(SeverityError, "rate_limit", "limits cannot be negative")
	}

	for i, region := range cfg.Regions {
		validateBounds(&r, region.Bounds, fmt.Sprintf("monitoring_regions[%d].bounds", i))
	}

	poiNames := make(map[string]bool, len(cfg.PointsOfInterest))
	for i, poi := range cfg.PointsOfInterest {
		field := fmt.Sprintf("points_of_interest[%d]", i)
		validateCoordinates(&r, poi.Latitude, poi.Longitude, field)
		if poi.RadiusKm <= 0 {
			r.add(SeverityError, field+".alert_radius_km", "Alert radius must be positive, got %g", poi.RadiusKm)
		}
		if poiNames[poi.Name] {
			r.add(SeverityWarning, field+".name", "duplicate POI name '%s', only the first definition is used", poi.Name)
		}
		poiNames[poi.Name] = true
	}

	seen := make(map[string]bool, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		field := fmt.Sprintf("alert_channels[%d]", i)

		if ch.Name == "" {
			r.add(SeverityError, field+".name", "channel name is required")
		} else if seen[ch.Name] {
			r.add(SeverityError, field+".name", "duplicate channel name '%s'", ch.Name)
		}
		seen[ch.Name] = true

		if !ch.Kind.Valid() {
			r.add(SeverityError, field+".type", "unknown channel type '%s'", ch.Kind)
		}

		rule := ch.Rule
		if rule.Bounds != nil {
			validateBounds(&r, *rule.Bounds, field+".rules.bounds")
		}
		if rule.MaxMagnitude != nil && rule.MinMagnitude > *rule.MaxMagnitude {
			r.add(SeverityError, field+".rules",
				"min_magnitude (%g) > max_magnitude (%g)", rule.MinMagnitude, *rule.MaxMagnitude)
		}

		validatePOIReferences(&r, cfg.poiRefs[i], cfg.PointsOfInterest, field+".rules.points_of_interest")
		validateCredentials(&r, ch, field)
	}

	if len(cfg.Channels) == 0 {
		r.add(SeverityWarning, "alert_channels", "No alert channels configured")
	}

	return r
}

func validateCoordinates(r *ValidationResult, lat, lon float64, field string) {
	if lat < -90 || lat > 90 {
		r.add(SeverityError, field, "Latitude %g out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		r.add(SeverityError, field, "Longitude %g out of range [-180, 180]", lon)
	}
}

func validateBounds(r *ValidationResult, b models.GeoBounds, field string) {
	validateCoordinates(r, b.MinLatitude, b.MinLongitude, field+".min")
	validateCoordinates(r, b.MaxLatitude, b.MaxLongitude, field+".max")

	if b.MinLatitude > b.MaxLatitude {
		r.add(SeverityError, field, "min_latitude (%g) > max_latitude (%g)", b.MinLatitude, b.MaxLatitude)
	}
	if b.MinLongitude > b.MaxLongitude {
		r.add(SeverityError, field, "min_longitude (%g) > max_longitude (%g)", b.MinLongitude, b.MaxLongitude)
	}
}

func validatePOIReferences(r *ValidationResult, refs []string, pois []models.PointOfInterest, field string) {
	if len(refs) == 0 {
		return
	}

	available := make(map[string]bool, len(pois))
	names := make([]string, 0, len(pois))
	for _, p := range pois {
		available[p.Name] = true
		names = append(names, p.Name)
	}

	missing := make([]string, 0)
	for _, ref := range refs {
		if !available[ref] {
			missing = append(missing, ref)
		}
	}
	sort.Strings(missing)

	for _, name := range missing {
		if similar := similarNames(name, names); len(similar) > 0 {
			r.add(SeverityWarning, field, "POI '%s' not found. Did you mean '%s'?", name, similar[0])
		} else {
			r.add(SeverityWarning, field, "POI '%s' not found in points_of_interest", name)
		}
	}
}

func validateCredentials(r *ValidationResult, ch models.AlertChannel, field string) {
	switch ch.Kind {
	case models.KindSlack:
		if ch.WebhookURL == "" || hasPlaceholder(ch.WebhookURL) {
			r.add(SeverityWarning, field+".webhook_url", "Webhook URL not resolved (still contains placeholder)")
		}
	case models.KindTwitter:
		if ch.Twitter == nil || !ch.Twitter.Complete() || credentialsUnresolved(ch.Twitter.APIKey, ch.Twitter.APISecret, ch.Twitter.AccessToken, ch.Twitter.AccessTokenSecret) {
			r.add(SeverityWarning, field+".credentials", "Twitter credentials incomplete or unresolved")
		}
	case models.KindWhatsApp:
		if ch.WhatsApp == nil || !ch.WhatsApp.Complete() || credentialsUnresolved(ch.WhatsApp.AccountSID, ch.WhatsApp.AuthToken, ch.WhatsApp.FromNumber) {
			r.add(SeverityWarning, field+".credentials", "WhatsApp credentials incomplete or unresolved")
		}
	case models.KindEmail:
		if ch.Email == nil || len(ch.Email.Recipients) == 0 {
			r.add(SeverityWarning, field+".recipients", "Email channel has no recipients")
		}
	}
}

func credentialsUnresolved(values ...string) bool {
	for _, v := range values {
		if hasPlaceholder(v) {
			return true
		}
	}
	return false
}

// similarNames ranks candidates by a loose case-insensitive similarity and
// returns those scoring at least 0.6, best first.
func similarNames(name string, candidates []string) []string {
	type scored struct {
		name  string
		score float64
	}

	var matches []scored
	for _, c := range candidates {
		if s := similarity(name, c); s >= 0.6 {
			matches = append(matches, scored{c, s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
	}
	return out
}

func similarity(a, b string) float64 {
	al, bl := strings.ToLower(a), strings.ToLower(b)
	if al == bl {
		return 1.0
	}
	if strings.Contains(al, bl) || strings.Contains(bl, al) {
		return 0.8
	}

	common := 0
	for _, c := range al {
		if strings.ContainsRune(bl, c) {
			common++
		}
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return float64(common) / float64(longest)
}
