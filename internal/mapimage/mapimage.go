// Package mapimage renders a small locator image for an earthquake. The
// parameters (zoom, colour, marker size) are pure functions of magnitude;
// drawing is done with go-chart.
package mapimage

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 400

	tileSize = 256.0
)

// Config describes one map image
type Config struct {
	Latitude     float64
	Longitude    float64
	Zoom         int
	Width        int
	Height       int
	MarkerColor  string
	MarkerRadius int
}

// Renderer produces a PNG for an event
type Renderer interface {
	Render(ctx context.Context, event models.Event, pois []models.PointOfInterest) ([]byte, error)
}

// NewConfig returns the map parameters for an event of the given magnitude
// at the default image size.
func NewConfig(lat, lon, magnitude float64) Config {
	return Config{
		Latitude:     lat,
		Longitude:    lon,
		Zoom:         ZoomLevel(magnitude),
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		MarkerColor:  MagnitudeColor(magnitude),
		MarkerRadius: MarkerRadius(magnitude),
	}
}

// ZoomLevel zooms out for larger events
func ZoomLevel(magnitude float64) int {
	switch {
	case magnitude >= 7.0:
		return 7
	case magnitude >= 6.0:
		return 8
	case magnitude >= 5.0:
		return 9
	case magnitude >= 4.0:
		return 10
	default:
		return 11
	}
}

// MagnitudeColor matches the colours used on earthquake.city
func MagnitudeColor(magnitude float64) string {
	switch {
	case magnitude >= 7.0:
		return "#dc2626"
	case magnitude >= 5.0:
		return "#f97316"
	case magnitude >= 3.0:
		return "#eab308"
	default:
		return "#22c55e"
	}
}

// MarkerRadius grows with magnitude, capped at 24px
func MarkerRadius(magnitude float64) int {
	r := int(8 + magnitude*2)
	if r > 24 {
		return 24
	}
	return r
}

// Span returns the longitude and latitude extent covered by the image at
// the configured zoom, using web-mercator tile scale at the centre.
func (c Config) Span() (lonSpan, latSpan float64) {
	degPerPixel := 360.0 / (tileSize * math.Pow(2, float64(c.Zoom)))
	lonSpan = degPerPixel * float64(c.Width)
	latSpan = degPerPixel * float64(c.Height) * math.Cos(c.Latitude*math.Pi/180)
	return lonSpan, latSpan
}

// ChartRenderer draws the epicenter and any points of interest that fall
// inside the frame.
type ChartRenderer struct {
	Width  int
	Height int
}

var _ Renderer = (*ChartRenderer)(nil)

// NewChartRenderer creates a renderer with the default image size
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{Width: DefaultWidth, Height: DefaultHeight}
}

func (r *ChartRenderer) Render(ctx context.Context, event models.Event, pois []models.PointOfInterest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := NewConfig(event.Latitude, event.Longitude, event.Magnitude)
	if r.Width > 0 {
		cfg.Width = r.Width
	}
	if r.Height > 0 {
		cfg.Height = r.Height
	}

	logrus.Debugf("Generating map for (%.4f, %.4f) at zoom %d", cfg.Latitude, cfg.Longitude, cfg.Zoom)

	lonSpan, latSpan := cfg.Span()
	xRange := &chart.ContinuousRange{Min: cfg.Longitude - lonSpan/2, Max: cfg.Longitude + lonSpan/2}
	yRange := &chart.ContinuousRange{Min: cfg.Latitude - latSpan/2, Max: cfg.Latitude + latSpan/2}

	series := []chart.Series{
		marker("halo", cfg.Longitude, cfg.Latitude, float64(cfg.MarkerRadius+3), drawing.ColorWhite),
		marker("epicenter", cfg.Longitude, cfg.Latitude, float64(cfg.MarkerRadius), hexColor(cfg.MarkerColor)),
	}

	var poiX, poiY []float64
	for _, poi := range pois {
		if poi.Longitude < xRange.Min || poi.Longitude > xRange.Max || poi.Latitude < yRange.Min || poi.Latitude > yRange.Max {
			continue
		}
		poiX = append(poiX, poi.Longitude)
		poiY = append(poiY, poi.Latitude)
	}
	if len(poiX) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name: "points of interest",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    hexColor("#1d4ed8"),
			},
			XValues: poiX,
			YValues: poiY,
		})
	}

	graph := chart.Chart{
		Width:  cfg.Width,
		Height: cfg.Height,
		Background: chart.Style{
			FillColor: hexColor("#e0f2fe"),
		},
		XAxis: chart.XAxis{
			Range: xRange,
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		YAxis: chart.YAxis{
			Range: yRange,
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: series,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render map: %w", err)
	}

	logrus.Debugf("Generated map image: %d bytes", buf.Len())
	return buf.Bytes(), nil
}

func marker(name string, x, y, radius float64, color drawing.Color) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name: name,
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    radius,
			DotColor:    color,
		},
		XValues: []float64{x, x},
		YValues: []float64{y, y},
	}
}

func hexColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}
