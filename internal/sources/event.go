package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrInvalidRecord is returned for feed records that cannot become an Event
var ErrInvalidRecord = errors.New("invalid feed record")

const (
	defaultPlace   = "Unknown location"
	defaultMagType = "ml"
)

type feature struct {
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
	Geometry   *struct {
		Coordinates []*float64 `json:"coordinates"`
	} `json:"geometry"`
}

type properties struct {
	Mag     *float64 `json:"mag"`
	Place   *string  `json:"place"`
	Time    *int64   `json:"time"`
	URL     string   `json:"url"`
	Felt    *int     `json:"felt"`
	Alert   *string  `json:"alert"`
	Tsunami int      `json:"tsunami"`
	MagType *string  `json:"magType"`
	Types   string   `json:"types"`
}

// ParseEvent converts one GeoJSON feature into an Event. It fails when the
// id, magnitude, time or coordinate triple is missing or malformed.
func ParseEvent(raw json.RawMessage) (models.Event, error) {
	var f feature
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	if f.ID == "" {
		return models.Event{}, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	p := f.Properties
	if p.Mag == nil {
		return models.Event{}, fmt.Errorf("%w: %s has no magnitude", ErrInvalidRecord, f.ID)
	}
	if p.Time == nil {
		return models.Event{}, fmt.Errorf("%w: %s has no time", ErrInvalidRecord, f.ID)
	}
	if f.Geometry == nil || len(f.Geometry.Coordinates) < 3 {
		return models.Event{}, fmt.Errorf("%w: %s has no coordinate triple", ErrInvalidRecord, f.ID)
	}
	coords := f.Geometry.Coordinates
	for _, c := range coords[:3] {
		if c == nil {
			return models.Event{}, fmt.Errorf("%w: %s has a null coordinate", ErrInvalidRecord, f.ID)
		}
	}

	e := models.Event{
		ID:          f.ID,
		Magnitude:   *p.Mag,
		Place:       defaultPlace,
		Time:        time.UnixMilli(*p.Time).UTC(),
		Longitude:   *coords[0],
		Latitude:    *coords[1],
		DepthKm:     *coords[2],
		URL:         p.URL,
		Felt:        p.Felt,
		Tsunami:     p.Tsunami != 0,
		MagType:     defaultMagType,
		HasShakemap: hasProduct(p.Types, "shakemap"),
	}
	if p.Place != nil && *p.Place != "" {
		e.Place = *p.Place
	}
	if p.MagType != nil && *p.MagType != "" {
		e.MagType = *p.MagType
	}
	if p.Alert != nil {
		e.Alert = models.ParseAlertLevel(*p.Alert)
	}

	return e, nil
}

// hasProduct checks a comma-separated product list such as ",origin,shakemap,"
func hasProduct(types, product string) bool {
	for _, t := range strings.Split(types, ",") {
		if t == product {
			return true
		}
	}
	return false
}

// ParseBatch parses every record, drops the ones that fail and returns the
// rest newest first. Events with equal times keep their feed order.
func ParseBatch(raws []json.RawMessage) []models.Event {
	events := make([]models.Event, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		e, err := ParseEvent(raw)
		if err != nil {
			logrus.Debugf("Skipping feed record: %v", err)
			skipped++
			continue
		}
		events = append(events, e)
	}
	if skipped > 0 {
		logrus.Debugf("Skipped %d of %d feed records", skipped, len(raws))
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.After(events[j].Time)
	})
	return events
}

// FilterByMagnitude keeps events within [min, max]. Either bound may be nil.
func FilterByMagnitude(events []models.Event, min, max *float64) []models.Event {
	var out []models.Event
	for _, e := range events {
		if min != nil && e.Magnitude < *min {
			continue
		}
		if max != nil && e.Magnitude > *max {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterByTime keeps events strictly between after and before. Either bound
// may be nil.
func FilterByTime(events []models.Event, after, before *time.Time) []models.Event {
	var out []models.Event
	for _, e := range events {
		if after != nil && !e.Time.After(*after) {
			continue
		}
		if before != nil && !e.Time.Before(*before) {
			continue
		}
		out = append(out, e)
	}
	return out
}
