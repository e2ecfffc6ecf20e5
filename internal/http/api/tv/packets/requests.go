package packets

import "github.com/Brightline-Displays/beacon/internal/model"

type PairRequest struct {
	Code     string `json:"code" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

// HeartbeatRequest tolerates metrics blobs with extra fields; anything the
// server does not know is dropped during binding rather than rejected.
type HeartbeatRequest struct {
	Metrics *model.PerformanceMetrics `json:"metrics"`
}

type ReportErrorRequest struct {
	Message  string `json:"message" binding:"required"`
	Severity string `json:"severity"`
}
