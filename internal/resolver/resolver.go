// Package resolver computes the single authoritative schedule for a
// display at a given instant. It has no side effects and is safe to call
// on every display poll.
package resolver

import (
	"sort"
	"time"

	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/model"
)

// ResolveActive gathers the display's candidate schedules (direct targets
// plus current group-derived targets, joined at call time) and returns the
// winner, or nil when nothing is active.
func ResolveActive(store db.Store, displayID int, now time.Time) (*model.Schedule, error) {
	candidates, err := store.ListCandidateSchedules(displayID)
	if err != nil {
		return nil, err
	}
	return Pick(candidates, now), nil
}

// Pick filters candidates to those whose window covers now and orders them
// by priority descending, then start time descending (the most recently
// started schedule wins a priority tie), then id descending. The final id
// tie-break makes the ordering total. Returns nil for an empty set;
// callers fall back to their own default content.
func Pick(candidates []model.Schedule, now time.Time) *model.Schedule {
	active := make([]model.Schedule, 0, len(candidates))
	for _, s := range candidates {
		if s.ActiveAt(now) {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil
	}

	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.After(b.StartTime)
		}
		return a.ID > b.ID
	})
	return &active[0]
}
