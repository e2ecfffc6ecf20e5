package model

import "time"

const (
	DisplayOnline  = "online"
	DisplayOffline = "offline"
)

// Display represents a physical display device registered with the server.
type Display struct {
	ID               int        `db:"id" json:"id"`
	DeviceID         *string    `db:"device_id" json:"device_id"`
	Name             string     `db:"name" json:"name"`
	Location         *string    `db:"location" json:"location"`
	Status           string     `db:"status" json:"status"`
	Paired           bool       `db:"paired" json:"paired"`
	LastHeartbeat    *time.Time `db:"last_heartbeat" json:"last_heartbeat"`
	LastOnlineAt     *time.Time `db:"last_online_at" json:"last_online_at"`
	LastOfflineAt    *time.Time `db:"last_offline_at" json:"last_offline_at"`
	TotalHeartbeats  int        `db:"total_heartbeats" json:"total_heartbeats"`
	MissedHeartbeats int        `db:"missed_heartbeats" json:"missed_heartbeats"`
	UptimePercentage float64    `db:"uptime_percentage" json:"uptime_percentage"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// DisplayErrorEntry is one row of a display's bounded error log.
type DisplayErrorEntry struct {
	ID        int       `db:"id" json:"id"`
	DisplayID int       `db:"display_id" json:"display_id"`
	Severity  string    `db:"severity" json:"severity"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PerformanceMetrics is the opaque metrics blob a display reports with its
// heartbeat. Unknown fields are dropped during binding rather than rejected.
type PerformanceMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}
