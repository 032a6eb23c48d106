package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	// USGSBaseURL is the FDSN event query endpoint
	USGSBaseURL = "https://earthquake.usgs.gov/fdsnws/event/1/query"

	usgsTimeLayout   = "2006-01-02T15:04:05"
	defaultFeedLimit = 100
)

// USGSClient queries the USGS earthquake catalogue
type USGSClient struct {
	client  *resty.Client
	baseURL string
}

// Ensure USGSClient implements Feed
var _ Feed = (*USGSClient)(nil)

type featureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// NewUSGSClient creates a USGS feed client. An empty baseURL uses USGSBaseURL.
func NewUSGSClient(baseURL string, timeout time.Duration) *USGSClient {
	if baseURL == "" {
		baseURL = USGSBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &USGSClient{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "Quake-Alerts/1.0").
			SetHeader("Accept", "application/geo+json, application/json"),
		baseURL: baseURL,
	}
}

func (u *USGSClient) GetName() string {
	return "usgs"
}

// Fetch returns the raw GeoJSON features matching the query
func (u *USGSClient) Fetch(ctx context.Context, q Query) ([]json.RawMessage, error) {
	params := map[string]string{
		"format":       "geojson",
		"orderby":      "time",
		"minlatitude":  formatCoord(q.Bounds.MinLatitude),
		"maxlatitude":  formatCoord(q.Bounds.MaxLatitude),
		"minlongitude": formatCoord(q.Bounds.MinLongitude),
		"maxlongitude": formatCoord(q.Bounds.MaxLongitude),
	}
	if q.MinMagnitude != nil {
		params["minmagnitude"] = formatCoord(*q.MinMagnitude)
	}
	if !q.Start.IsZero() {
		params["starttime"] = q.Start.UTC().Format(usgsTimeLayout)
	}
	if !q.End.IsZero() {
		params["endtime"] = q.End.UTC().Format(usgsTimeLayout)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	params["limit"] = strconv.Itoa(limit)

	resp, err := u.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(u.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to query USGS: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("USGS returned status %d: %s", resp.StatusCode(), truncateBody(resp.Body()))
	}

	var collection featureCollection
	if err := json.Unmarshal(resp.Body(), &collection); err != nil {
		return nil, fmt.Errorf("failed to decode USGS response: %w", err)
	}

	logrus.Debugf("USGS returned %d features for %s", len(collection.Features), q.Bounds)
	return collection.Features, nil
}

// FetchEvents fetches from the feed and parses the result newest first
func FetchEvents(ctx context.Context, feed Feed, q Query) ([]models.Event, error) {
	raws, err := feed.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return ParseBatch(raws), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
