package db

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/model"
	"github.com/Brightline-Displays/beacon/internal/recurrence"
)

// ScheduleParams carries the writable fields of a schedule. Create and
// update both take the full set; partial updates are merged by the caller
// before reaching the store.
type ScheduleParams struct {
	DisplayID      *int
	DisplayGroupID *int
	ContentID      *int
	ContentIDs     []int64
	PlaylistID     *int
	StartTime      time.Time
	EndTime        *time.Time
	RecurrenceRule *string
	Priority       int
	IsActive       bool
}

// ValidateScheduleParams rejects bad target/payload combinations, inverted
// time windows and unparsable recurrence rules before anything is persisted.
func ValidateScheduleParams(p ScheduleParams) error {
	if (p.DisplayID == nil) == (p.DisplayGroupID == nil) {
		return fmt.Errorf("schedule must target exactly one of display_id or display_group_id")
	}
	payloads := 0
	if p.ContentID != nil {
		payloads++
	}
	if len(p.ContentIDs) > 0 {
		payloads++
	}
	if p.PlaylistID != nil {
		payloads++
	}
	if payloads != 1 {
		return fmt.Errorf("schedule must carry exactly one of content_id, content_ids or playlist_id")
	}
	if p.EndTime != nil && !p.EndTime.After(p.StartTime) {
		return fmt.Errorf("end_time must be after start_time")
	}
	if p.RecurrenceRule != nil && *p.RecurrenceRule != "" {
		if err := recurrence.Validate(*p.RecurrenceRule); err != nil {
			return fmt.Errorf("invalid recurrence_rule: %w", err)
		}
	}
	return nil
}

const scheduleColumns = `
	id, display_id, display_group_id, content_id, content_ids, playlist_id,
	start_time, end_time, recurrence_rule, priority, is_active,
	created_at, updated_at`

func (s *pgStore) CreateSchedule(p ScheduleParams) (model.Schedule, error) {
	if err := ValidateScheduleParams(p); err != nil {
		return model.Schedule{}, err
	}
	var sc model.Schedule
	q := `
	INSERT INTO schedules
	  (display_id, display_group_id, content_id, content_ids, playlist_id,
	   start_time, end_time, recurrence_rule, priority, is_active, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
	RETURNING` + scheduleColumns + `;`
	err := s.db.Get(&sc, q,
		p.DisplayID, p.DisplayGroupID, p.ContentID, pq.Int64Array(p.ContentIDs), p.PlaylistID,
		p.StartTime, p.EndTime, p.RecurrenceRule, p.Priority, p.IsActive)
	if err != nil {
		log.Error().Err(err).Msg("CreateSchedule failed")
		return model.Schedule{}, err
	}
	return sc, nil
}

func (s *pgStore) GetSchedule(id int) (model.Schedule, error) {
	var sc model.Schedule
	err := s.db.Get(&sc, `SELECT`+scheduleColumns+` FROM schedules WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("GetSchedule failed")
	}
	return sc, err
}

func (s *pgStore) ListSchedules() ([]model.Schedule, error) {
	var out []model.Schedule
	err := s.db.Select(&out, `SELECT`+scheduleColumns+` FROM schedules ORDER BY id;`)
	if err != nil {
		log.Error().Err(err).Msg("ListSchedules failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) UpdateSchedule(id int, p ScheduleParams) (model.Schedule, error) {
	if err := ValidateScheduleParams(p); err != nil {
		return model.Schedule{}, err
	}
	var sc model.Schedule
	q := `
	UPDATE schedules SET
	  display_id = $1, display_group_id = $2, content_id = $3, content_ids = $4,
	  playlist_id = $5, start_time = $6, end_time = $7, recurrence_rule = $8,
	  priority = $9, is_active = $10, updated_at = now()
	WHERE id = $11
	RETURNING` + scheduleColumns + `;`
	err := s.db.Get(&sc, q,
		p.DisplayID, p.DisplayGroupID, p.ContentID, pq.Int64Array(p.ContentIDs), p.PlaylistID,
		p.StartTime, p.EndTime, p.RecurrenceRule, p.Priority, p.IsActive, id)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("UpdateSchedule failed")
		return model.Schedule{}, err
	}
	return sc, nil
}

func (s *pgStore) DeleteSchedule(id int) error {
	_, err := s.db.Exec(`DELETE FROM schedules WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Int("schedule_id", id).Msg("DeleteSchedule failed")
	}
	return err
}

// ListCandidateSchedules returns every active schedule that could apply to
// the display: direct targets plus targets of any group the display is a
// current member of. Membership is joined here, at query time, never from a
// cached graph. Time-window filtering is left to the resolver.
func (s *pgStore) ListCandidateSchedules(displayID int) ([]model.Schedule, error) {
	var out []model.Schedule
	q := `
	SELECT` + scheduleColumns + `
	  FROM schedules
	 WHERE is_active = true
	   AND (display_id = $1
	        OR display_group_id IN (
	            SELECT group_id FROM display_group_members WHERE display_id = $1))
	 ORDER BY priority DESC, start_time DESC, id DESC;`
	if err := s.db.Select(&out, q, displayID); err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("ListCandidateSchedules failed")
		return nil, err
	}
	return out, nil
}

// ListActiveSchedulesForGroup returns the active schedules targeting a
// group directly. Used to re-derive jobs when group membership changes.
func (s *pgStore) ListActiveSchedulesForGroup(groupID int) ([]model.Schedule, error) {
	var out []model.Schedule
	q := `
	SELECT` + scheduleColumns + `
	  FROM schedules
	 WHERE is_active = true AND display_group_id = $1
	 ORDER BY id;`
	if err := s.db.Select(&out, q, groupID); err != nil {
		log.Error().Err(err).Int("group_id", groupID).Msg("ListActiveSchedulesForGroup failed")
		return nil, err
	}
	return out, nil
}
