package packets

import "time"

type CreateScheduleRequest struct {
	DisplayID      *int       `json:"display_id"`
	DisplayGroupID *int       `json:"display_group_id"`
	ContentID      *int       `json:"content_id"`
	ContentIDs     []int64    `json:"content_ids"`
	PlaylistID     *int       `json:"playlist_id"`
	StartTime      time.Time  `json:"start_time" binding:"required"`
	EndTime        *time.Time `json:"end_time"`
	RecurrenceRule *string    `json:"recurrence_rule"`
	Priority       int        `json:"priority"`
	IsActive       *bool      `json:"is_active"`
}

// UpdateScheduleRequest carries only the fields being changed; omitted
// fields keep their stored values. Supplying any target field replaces the
// whole target, and likewise for the payload fields.
type UpdateScheduleRequest struct {
	DisplayID      *int       `json:"display_id"`
	DisplayGroupID *int       `json:"display_group_id"`
	ContentID      *int       `json:"content_id"`
	ContentIDs     []int64    `json:"content_ids"`
	PlaylistID     *int       `json:"playlist_id"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	ClearEndTime   bool       `json:"clear_end_time"`
	RecurrenceRule *string    `json:"recurrence_rule"`
	Priority       *int       `json:"priority"`
	IsActive       *bool      `json:"is_active"`
}

type CreateGroupRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type UpdateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AddGroupMemberRequest struct {
	DisplayID int `json:"display_id" binding:"required"`
}

type CreateDisplayRequest struct {
	Name     string  `json:"name" binding:"required"`
	Location *string `json:"location"`
}

type UpdateDisplayRequest struct {
	Name     *string `json:"name"`
	Location *string `json:"location"`
}

type SetDebugRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type UpdateSettingRequest struct {
	Value any `json:"value"`
}
