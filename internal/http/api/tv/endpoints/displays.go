package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/health"
	"github.com/Brightline-Displays/beacon/internal/http/api"
	"github.com/Brightline-Displays/beacon/internal/http/api/tv/packets"
	"github.com/Brightline-Displays/beacon/internal/http/middleware"
	redisclient "github.com/Brightline-Displays/beacon/internal/redis"
	"github.com/Brightline-Displays/beacon/internal/resolver"
)

type TvController struct {
	store   db.Store
	monitor *health.Monitor
	cache   *redisclient.Cache
	secret  string
}

func NewTvController(store db.Store, monitor *health.Monitor, cache *redisclient.Cache, secret string) *TvController {
	return &TvController{store: store, monitor: monitor, cache: cache, secret: secret}
}

// PairingModule has no auth: a display exchanges its short-lived pairing
// code for a device token.
func PairingModule(ctl *TvController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/displays/pair", ctl.pair)
	})
}

// DeviceModule carries the device-token-authenticated display surface.
func DeviceModule(ctl *TvController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/displays/heartbeat", ctl.heartbeat)
		c.POST("/displays/errors", ctl.reportError)
		c.GET("/displays/current", ctl.current)
	})
}

func (t *TvController) pair(ctx *gin.Context) (any, *api.Error) {
	var request packets.PairRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if t.cache == nil {
		return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: "pairing requires the cache"}
	}

	displayID, err := t.cache.TakePairingCode(ctx.Request.Context(), request.Code)
	if err != nil {
		return nil, &api.Error{Code: http.StatusUnauthorized, Message: "invalid or expired pairing code"}
	}
	if err := t.store.PairDisplay(displayID, request.DeviceID); err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not pair display"}
	}
	token, err := middleware.GenerateDeviceToken(displayID, t.secret)
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not issue device token"}
	}
	return packets.PairResponse{DisplayID: displayID, Token: token}, nil
}

func (t *TvController) heartbeat(ctx *gin.Context) (any, *api.Error) {
	displayID, ok := middleware.GetCurrentDisplayID(ctx)
	if !ok {
		return nil, &api.Error{Code: http.StatusUnauthorized, Message: "unauthorized"}
	}

	// an empty or malformed body is a valid heartbeat without metrics
	var request packets.HeartbeatRequest
	_ = ctx.ShouldBindJSON(&request)

	if err := t.monitor.Heartbeat(ctx.Request.Context(), displayID, request.Metrics); err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not record heartbeat"}
	}
	return gin.H{"status": "ok", "server_time": time.Now().UTC()}, nil
}

func (t *TvController) reportError(ctx *gin.Context) (any, *api.Error) {
	displayID, ok := middleware.GetCurrentDisplayID(ctx)
	if !ok {
		return nil, &api.Error{Code: http.StatusUnauthorized, Message: "unauthorized"}
	}
	var request packets.ReportErrorRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	severity := request.Severity
	if severity == "" {
		severity = health.SeverityLow
	}
	if err := t.monitor.LogError(displayID, request.Message, severity); err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not record error"}
	}
	return gin.H{"status": "logged"}, nil
}

// current answers the pull path: which schedule is authoritative right now.
// 204 means nothing resolves and the display falls back to its default
// content.
func (t *TvController) current(ctx *gin.Context) (any, *api.Error) {
	displayID, ok := middleware.GetCurrentDisplayID(ctx)
	if !ok {
		return nil, &api.Error{Code: http.StatusUnauthorized, Message: "unauthorized"}
	}

	s, err := resolver.ResolveActive(t.store, displayID, time.Now())
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "resolution failed"}
	}
	if s == nil {
		return nil, nil // rendered as 204
	}
	return packets.CurrentResponse{
		ScheduleID: s.ID,
		ContentID:  s.ContentID,
		ContentIDs: s.ContentIDs,
		PlaylistID: s.PlaylistID,
		Priority:   s.Priority,
		Schedule:   *s,
	}, nil
}
