package sources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
)

// Query scopes one request to an event feed
type Query struct {
	Bounds       models.GeoBounds
	MinMagnitude *float64
	Start        time.Time
	End          time.Time
	Limit        int
}

// Feed fetches raw event records from an upstream catalogue
type Feed interface {
	GetName() string
	Fetch(ctx context.Context, q Query) ([]json.RawMessage, error)
}
