package rules

import (
	"github.com/earthquake-city/quake-alerts/internal/geo"
	"github.com/earthquake-city/quake-alerts/internal/models"
)

// Decision pairs an event with the channels whose rule it satisfies
type Decision struct {
	Event    models.Event
	Channels []models.AlertChannel
}

// ShouldAlert reports whether at least one channel matched
func (d Decision) ShouldAlert() bool {
	return len(d.Channels) > 0
}

// ChannelNames lists the matched channel names in configuration order
func (d Decision) ChannelNames() []string {
	names := make([]string, 0, len(d.Channels))
	for _, ch := range d.Channels {
		names = append(names, ch.Name)
	}
	return names
}

// MatchesMagnitude checks the inclusive magnitude range of the rule
func MatchesMagnitude(e models.Event, r models.AlertRule) bool {
	if e.Magnitude < r.MinMagnitude {
		return false
	}
	if r.MaxMagnitude != nil && e.Magnitude > *r.MaxMagnitude {
		return false
	}
	return true
}

// MatchesLocation is true when the rule has no location constraints, or
// when the event is inside the bounds or within any point's radius.
func MatchesLocation(e models.Event, r models.AlertRule) bool {
	if r.Bounds == nil && len(r.PointsOfInterest) == 0 {
		return true
	}

	if r.Bounds != nil && geo.Contains(*r.Bounds, e.Latitude, e.Longitude) {
		return true
	}

	for _, poi := range r.PointsOfInterest {
		if geo.IsNearPOI(e, poi) {
			return true
		}
	}

	return false
}

// MatchesOverride checks the tsunami and felt-report conditions
func MatchesOverride(e models.Event, r models.AlertRule) bool {
	if r.AlertOnTsunami && e.Tsunami {
		return true
	}
	if r.AlertOnFelt && e.FeltCount() >= r.FeltThreshold {
		return true
	}
	return false
}

// Evaluate decides whether the event should alert under the rule.
// An override bypasses the magnitude range but never the location scope.
func Evaluate(e models.Event, r models.AlertRule) bool {
	if MatchesOverride(e, r) {
		return MatchesLocation(e, r)
	}
	return MatchesMagnitude(e, r) && MatchesLocation(e, r)
}

// FilterEvents keeps the events that satisfy the rule, preserving order
func FilterEvents(events []models.Event, r models.AlertRule) []models.Event {
	var out []models.Event
	for _, e := range events {
		if Evaluate(e, r) {
			out = append(out, e)
		}
	}
	return out
}

// ChannelsFor returns the channels whose rule matches the event, in order
func ChannelsFor(e models.Event, channels []models.AlertChannel) []models.AlertChannel {
	var out []models.AlertChannel
	for _, ch := range channels {
		if Evaluate(e, ch.Rule) {
			out = append(out, ch)
		}
	}
	return out
}

// DecisionsFor maps each event to its matching channels. Events with no
// matching channel are left out; event order is preserved.
func DecisionsFor(events []models.Event, channels []models.AlertChannel) []Decision {
	var out []Decision
	for _, e := range events {
		matched := ChannelsFor(e, channels)
		if len(matched) == 0 {
			continue
		}
		out = append(out, Decision{Event: e, Channels: matched})
	}
	return out
}
