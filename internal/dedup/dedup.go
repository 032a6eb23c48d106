package dedup

import (
	"sort"

	"github.com/earthquake-city/quake-alerts/internal/models"
)

// IDSet is an unordered set of event identifiers
type IDSet map[string]struct{}

// NewIDSet builds a set from the given identifiers
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Sorted returns the identifiers in lexicographic order
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EventIDs collects the identifiers of the given events
func EventIDs(events []models.Event) IDSet {
	s := make(IDSet, len(events))
	for _, e := range events {
		s.Add(e.ID)
	}
	return s
}

// NewIDs returns the identifiers in current that are not in seen
func NewIDs(current, seen IDSet) IDSet {
	out := make(IDSet)
	for id := range current {
		if !seen.Has(id) {
			out.Add(id)
		}
	}
	return out
}

// FilterUnseen keeps the events whose identifier is not in seen, in input order
func FilterUnseen(events []models.Event, seen IDSet) []models.Event {
	var out []models.Event
	for _, e := range events {
		if !seen.Has(e.ID) {
			out = append(out, e)
		}
	}
	return out
}

// IDsToPersist returns the identifiers of events that were delivered.
// Deciding which events count as delivered is up to the caller.
func IDsToPersist(delivered []models.Event) IDSet {
	return EventIDs(delivered)
}

// IDsToExpire picks identifiers to drop so the store stays at maxStored.
// Identifiers in the current batch are never chosen. There is no recency
// information, so candidates are taken in lexicographic order.
func IDsToExpire(stored, currentBatch IDSet, maxStored int) IDSet {
	if maxStored < 0 {
		maxStored = 0
	}
	out := make(IDSet)
	if len(stored) <= maxStored {
		return out
	}

	excess := len(stored) - maxStored
	for _, id := range stored.Sorted() {
		if excess == 0 {
			break
		}
		if currentBatch.Has(id) {
			continue
		}
		out.Add(id)
		excess--
	}
	return out
}
