package packets

import "github.com/Brightline-Displays/beacon/internal/model"

type PairResponse struct {
	DisplayID int    `json:"display_id"`
	Token     string `json:"token"`
}

// CurrentResponse is the resolver's answer to "what should I show now".
type CurrentResponse struct {
	ScheduleID int            `json:"schedule_id"`
	ContentID  *int           `json:"content_id"`
	ContentIDs []int64        `json:"content_ids"`
	PlaylistID *int           `json:"playlist_id"`
	Priority   int            `json:"priority"`
	Schedule   model.Schedule `json:"schedule"`
}
