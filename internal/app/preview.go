package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/config"
	"github.com/earthquake-city/quake-alerts/internal/formatter"
	"github.com/earthquake-city/quake-alerts/internal/geo"
	"github.com/earthquake-city/quake-alerts/internal/mapimage"
	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/earthquake-city/quake-alerts/internal/rules"
	"github.com/earthquake-city/quake-alerts/internal/sources"
	"github.com/sirupsen/logrus"
)

// PreviewOptions configure the preview command.
type PreviewOptions struct {
	Hours  int
	OutDir string
}

// Count is a named tally in a preview
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Preview summarises recent events against the alerting configuration
type Preview struct {
	Largest  *models.Event          `json:"largest,omitempty"`
	Regions  []Count                `json:"regions"`
	POIs     []Count                `json:"points_of_interest"`
	Channels []Count                `json:"channels"`
	Summary  formatter.SlackMessage `json:"summary"`
}

// BuildPreview counts the events per region, per point of interest and per
// channel rule. Nothing is sent or persisted.
func BuildPreview(events []models.Event, alerting *config.AlertConfig) Preview {
	p := Preview{
		Regions:  []Count{},
		POIs:     []Count{},
		Channels: []Count{},
		Summary:  formatter.BatchSummary(events),
	}

	for _, r := range alerting.Regions {
		p.Regions = append(p.Regions, Count{Name: r.Name, Count: len(geo.FilterByBounds(events, r.Bounds))})
	}
	for _, poi := range alerting.PointsOfInterest {
		p.POIs = append(p.POIs, Count{Name: poi.Name, Count: len(geo.FilterByProximity(events, poi.Latitude, poi.Longitude, poi.RadiusKm))})
	}
	for _, ch := range alerting.Channels {
		p.Channels = append(p.Channels, Count{Name: ch.Name, Count: len(rules.FilterEvents(events, ch.Rule))})
	}

	for i := range events {
		if p.Largest == nil || events[i].Magnitude > p.Largest.Magnitude {
			p.Largest = &events[i]
		}
	}
	return p
}

// Preview fetches the last opts.Hours of events, prints a report to w and
// writes the Slack digest plus a map of the largest event to opts.OutDir.
func (a *App) Preview(ctx context.Context, opts PreviewOptions, w io.Writer) error {
	alerting := a.Config.Alerting
	if alerting == nil {
		alerting = config.DefaultAlertConfig()
	}

	bounds, ok := geo.CombineBounds(geo.RegionBounds(alerting.Regions))
	if !ok {
		bounds = models.GeoBounds{MinLatitude: -90, MaxLatitude: 90, MinLongitude: -180, MaxLongitude: 180}
	}

	end := time.Now().UTC()
	events, err := sources.FetchEvents(ctx, a.NewFeed(), sources.Query{
		Bounds:       bounds,
		MinMagnitude: alerting.MinFetchMagnitude,
		Start:        end.Add(-time.Duration(opts.Hours) * time.Hour),
		End:          end,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch earthquakes: %w", err)
	}

	p := BuildPreview(events, alerting)

	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintln(w, "📊 EARTHQUAKE SUMMARY PREVIEW")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "🕒 Window: last %d hours (%s)\n", opts.Hours, bounds)
	fmt.Fprintf(w, "📈 %s\n", p.Summary.Text)
	printCounts(w, "📍 Regions", p.Regions)
	printCounts(w, "🏠 Points of interest", p.POIs)
	printCounts(w, "📣 Channels (rule matches)", p.Channels)

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.OutDir, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	previewPath := filepath.Join(opts.OutDir, "preview.json")
	if err := os.WriteFile(previewPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", previewPath, err)
	}
	fmt.Fprintf(w, "\n💾 Preview written to %s\n", previewPath)

	if p.Largest == nil {
		fmt.Fprintln(w, "ℹ️  No earthquakes in the window, skipping alert previews.")
		return nil
	}

	largest := *p.Largest
	formatOpts := formatter.Options{Nearby: geo.NearbyPOIs(largest, alerting.PointsOfInterest, geo.DefaultNearbyKm)}
	fmt.Fprintf(w, "\n🐦 Short text:\n%s\n", formatter.ShortText(largest, formatOpts))
	fmt.Fprintf(w, "\n💬 Long text:\n%s\n", formatter.LongText(largest, formatOpts))

	image, err := mapimage.NewChartRenderer().Render(ctx, largest, alerting.PointsOfInterest)
	if err != nil {
		logrus.Warnf("Failed to render map image for %s: %v", largest.ID, err)
		return nil
	}
	mapPath := filepath.Join(opts.OutDir, largest.ID+".png")
	if err := os.WriteFile(mapPath, image, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", mapPath, err)
	}
	fmt.Fprintf(w, "\n🗺️  Map image written to %s\n", mapPath)
	return nil
}

func printCounts(w io.Writer, title string, counts []Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "   • %-24s %d\n", c.Name+":", c.Count)
	}
}
