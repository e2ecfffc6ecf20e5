package bus

import (
	"fmt"
	"time"

	"github.com/Brightline-Displays/beacon/internal/model"
)

// Topic names. Subscription registration happens in one place at process
// start so the full consumer graph stays visible.
const (
	TopicScheduleCreated   = "schedule.created"
	TopicScheduleUpdated   = "schedule.updated"
	TopicScheduleDeleted   = "schedule.deleted"
	TopicScheduleTriggered = "schedule.triggered"

	// generalized form of display.<id>.content.changed
	TopicDisplayContentChanged = "display.content.changed"

	TopicDisplayOnline    = "display.online"
	TopicDisplayOffline   = "display.offline"
	TopicDisplayErrorHigh = "display.error.high"
	TopicDisplayDebug     = "display.debug"

	TopicSettingsUpdated      = "settings.updated"
	TopicSettingsFPCONChanged = "settings.fpcon.changed"
	TopicSettingsLANChanged   = "settings.lan.changed"
)

// DisplayContentTopic is the per-display form of TopicDisplayContentChanged.
func DisplayContentTopic(displayID int) string {
	return fmt.Sprintf("display.%d.content.changed", displayID)
}

type SchedulePayload struct {
	Schedule model.Schedule `json:"schedule"`
}

type ScheduleDeletedPayload struct {
	ScheduleID int `json:"schedule_id"`
}

type TriggeredPayload struct {
	ScheduleID  int       `json:"schedule_id"`
	DisplayID   int       `json:"display_id"`
	ContentID   int       `json:"content_id"`
	TriggeredAt time.Time `json:"triggered_at"`
}

type ContentChangedPayload struct {
	DisplayID  int    `json:"display_id"`
	ContentID  int    `json:"content_id"`
	Source     string `json:"source"`
	ScheduleID int    `json:"schedule_id"`
}

type DisplayStatusPayload struct {
	DisplayID   int       `json:"display_id"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
}

type DisplayErrorPayload struct {
	DisplayID   int       `json:"display_id"`
	DisplayName string    `json:"display_name"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

type DisplayDebugPayload struct {
	DisplayID int       `json:"display_id"`
	Enabled   bool      `json:"enabled"`
	Timestamp time.Time `json:"timestamp"`
}

type SettingsPayload struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
