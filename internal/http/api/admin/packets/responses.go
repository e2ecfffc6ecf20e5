package packets

import "github.com/Brightline-Displays/beacon/internal/model"

type DisplayHealthResponse struct {
	DisplayID        int                        `json:"display_id"`
	Status           string                     `json:"status"`
	UptimePercentage float64                    `json:"uptime_percentage"`
	HealthScore      float64                    `json:"health_score"`
	RecentErrors     []model.DisplayErrorEntry `json:"recent_errors"`
	Metrics          *model.PerformanceMetrics `json:"metrics"`
}

type GroupResponse struct {
	Group    model.DisplayGroup `json:"group"`
	Displays []model.Display    `json:"displays"`
}

type PairingCodeResponse struct {
	DisplayID int    `json:"display_id"`
	Code      string `json:"code"`
}
