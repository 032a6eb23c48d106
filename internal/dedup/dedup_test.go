package dedup

import (
	"fmt"
	"testing"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events(ids ...string) []models.Event {
	out := make([]models.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Event{ID: id, Magnitude: 3.0})
	}
	return out
}

func ids(evs []models.Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.ID)
	}
	return out
}

func TestNewIDs(t *testing.T) {
	tests := []struct {
		name     string
		current  IDSet
		seen     IDSet
		expected IDSet
	}{
		{"nothing seen", NewIDSet("a", "b"), NewIDSet(), NewIDSet("a", "b")},
		{"some seen", NewIDSet("a", "b", "c"), NewIDSet("b"), NewIDSet("a", "c")},
		{"all seen", NewIDSet("a"), NewIDSet("a", "z"), NewIDSet()},
		{"nil seen", NewIDSet("a"), nil, NewIDSet("a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewIDs(tt.current, tt.seen))
		})
	}
}

func TestFilterUnseen(t *testing.T) {
	tests := []struct {
		name     string
		events   []models.Event
		seen     IDSet
		expected []string
	}{
		{"empty seen keeps all", events("c", "a", "b"), NewIDSet(), []string{"c", "a", "b"}},
		{"drops seen and keeps order", events("c", "a", "b", "d"), NewIDSet("a", "d"), []string{"c", "b"}},
		{"all seen", events("a", "b"), NewIDSet("a", "b"), []string{}},
		{"no events", nil, NewIDSet("a"), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ids(FilterUnseen(tt.events, tt.seen)))
		})
	}
}

func TestFilterUnseen_ExactlyUnseen(t *testing.T) {
	evs := events("e1", "e2", "e3", "e4", "e5", "e6")
	seen := NewIDSet("e2", "e5", "e9")

	result := FilterUnseen(evs, seen)

	for _, e := range result {
		assert.False(t, seen.Has(e.ID))
	}
	for _, e := range evs {
		if !seen.Has(e.ID) {
			assert.Contains(t, ids(result), e.ID)
		}
	}
}

func TestEventIDs(t *testing.T) {
	assert.Equal(t, NewIDSet("a", "b"), EventIDs(events("a", "b", "a")))
	assert.Empty(t, EventIDs(nil))
}

func TestIDsToPersist(t *testing.T) {
	assert.Equal(t, NewIDSet("ev1", "ev2"), IDsToPersist(events("ev1", "ev2")))
}

func TestIDsToExpire(t *testing.T) {
	tests := []struct {
		name      string
		stored    IDSet
		current   IDSet
		maxStored int
		expected  IDSet
	}{
		{"under cap", NewIDSet("a", "b"), NewIDSet(), 5, NewIDSet()},
		{"at cap", NewIDSet("a", "b", "c"), NewIDSet(), 3, NewIDSet()},
		{"over cap", NewIDSet("a", "b", "c", "d"), NewIDSet(), 2, NewIDSet("a", "b")},
		{"skips current batch", NewIDSet("a", "b", "c", "d"), NewIDSet("a", "b"), 2, NewIDSet("c", "d")},
		{"expirable pool too small", NewIDSet("a", "b", "c"), NewIDSet("a", "b"), 1, NewIDSet("c")},
		{"everything current", NewIDSet("a", "b"), NewIDSet("a", "b"), 0, NewIDSet()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IDsToExpire(tt.stored, tt.current, tt.maxStored))
		})
	}
}

func TestIDsToExpire_NeverExpiresCurrentBatch(t *testing.T) {
	stored := NewIDSet()
	current := NewIDSet()
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("ev%02d", i)
		stored.Add(id)
		if i%3 == 0 {
			current.Add(id)
		}
	}

	for maxStored := 0; maxStored <= 60; maxStored += 5 {
		expired := IDsToExpire(stored, current, maxStored)
		for id := range expired {
			assert.False(t, current.Has(id), "expired current id %s at max %d", id, maxStored)
		}
	}
}

func TestIDsToExpire_Deterministic(t *testing.T) {
	stored := NewIDSet("q", "w", "e", "r", "t", "y")
	first := IDsToExpire(stored, NewIDSet("e"), 3)

	for i := 0; i < 10; i++ {
		require.Equal(t, first, IDsToExpire(stored, NewIDSet("e"), 3))
	}
	assert.Len(t, first, 3)
}
