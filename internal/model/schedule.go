package model

import (
	"time"

	"github.com/lib/pq"
)

// Schedule assigns content to a display or display group for a time window.
// Exactly one of DisplayID/DisplayGroupID is set, and exactly one of
// ContentID/ContentIDs/PlaylistID is set; the store enforces both.
type Schedule struct {
	ID             int           `db:"id" json:"id"`
	DisplayID      *int          `db:"display_id" json:"display_id"`
	DisplayGroupID *int          `db:"display_group_id" json:"display_group_id"`
	ContentID      *int          `db:"content_id" json:"content_id"`
	ContentIDs     pq.Int64Array `db:"content_ids" json:"content_ids"`
	PlaylistID     *int          `db:"playlist_id" json:"playlist_id"`
	StartTime      time.Time     `db:"start_time" json:"start_time"`
	EndTime        *time.Time    `db:"end_time" json:"end_time"`
	RecurrenceRule *string       `db:"recurrence_rule" json:"recurrence_rule"`
	Priority       int           `db:"priority" json:"priority"`
	IsActive       bool          `db:"is_active" json:"is_active"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// Recurring reports whether the schedule has a recurrence rule.
func (s Schedule) Recurring() bool {
	return s.RecurrenceRule != nil && *s.RecurrenceRule != ""
}

// ActiveAt reports whether the schedule's window covers the given instant.
// Inactive schedules and schedules whose end time has passed never match.
func (s Schedule) ActiveAt(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.StartTime.After(now) {
		return false
	}
	if s.EndTime != nil && s.EndTime.Before(now) {
		return false
	}
	return true
}

// PrimaryContentID returns the content id a fired trigger should carry:
// the single content id, the head of the ordered list, or the playlist id.
func (s Schedule) PrimaryContentID() int {
	switch {
	case s.ContentID != nil:
		return *s.ContentID
	case len(s.ContentIDs) > 0:
		return int(s.ContentIDs[0])
	case s.PlaylistID != nil:
		return *s.PlaylistID
	}
	return 0
}
