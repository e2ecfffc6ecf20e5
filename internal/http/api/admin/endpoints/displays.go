package endpoints

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/health"
	"github.com/Brightline-Displays/beacon/internal/http/api"
	"github.com/Brightline-Displays/beacon/internal/http/api/admin/packets"
	"github.com/Brightline-Displays/beacon/internal/model"
	redisclient "github.com/Brightline-Displays/beacon/internal/redis"
)

type DisplayController struct {
	store   db.Store
	monitor *health.Monitor
	cache   *redisclient.Cache
	bus     *bus.Bus
}

func NewDisplayController(store db.Store, monitor *health.Monitor, cache *redisclient.Cache, b *bus.Bus) *DisplayController {
	return &DisplayController{store: store, monitor: monitor, cache: cache, bus: b}
}

func DisplayModule(store db.Store, monitor *health.Monitor, cache *redisclient.Cache, b *bus.Bus) api.Module {
	ctl := NewDisplayController(store, monitor, cache, b)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/displays", ctl.listDisplays)
		c.POST("/displays", ctl.createDisplay)
		c.GET("/displays/:id", ctl.getDisplay)
		c.PUT("/displays/:id", ctl.updateDisplay)
		c.DELETE("/displays/:id", ctl.deleteDisplay)

		c.GET("/displays/:id/health", ctl.getHealth)
		c.POST("/displays/:id/debug", ctl.setDebug)
		c.POST("/displays/:id/pairing-code", ctl.issuePairingCode)
	})
}

func (d *DisplayController) listDisplays(ctx *gin.Context) (any, *api.Error) {
	displays, err := d.store.ListDisplays()
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "failed to list displays"}
	}
	return displays, nil
}

func (d *DisplayController) createDisplay(ctx *gin.Context) (any, *api.Error) {
	var request packets.CreateDisplayRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	display, err := d.store.CreateDisplay(request.Name, request.Location)
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not create display"}
	}
	return display, nil
}

func (d *DisplayController) getDisplay(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	display, err := d.store.GetDisplayByID(id)
	if err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "display not found"}
	}
	return display, nil
}

func (d *DisplayController) updateDisplay(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	var request packets.UpdateDisplayRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	display, err := d.store.UpdateDisplay(id, request.Name, request.Location)
	if err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "display not found"}
	}
	return display, nil
}

func (d *DisplayController) deleteDisplay(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	if err := d.store.DeleteDisplay(id); err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not delete display"}
	}
	return gin.H{"message": "deleted"}, nil
}

func (d *DisplayController) getHealth(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	display, err := d.store.GetDisplayByID(id)
	if err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "display not found"}
	}

	score, err := d.monitor.HealthScore(ctx.Request.Context(), id)
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "failed to compute health score"}
	}
	recent, err := d.store.ListDisplayErrors(id, 50)
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "failed to list display errors"}
	}

	var metrics *model.PerformanceMetrics
	if d.cache != nil {
		if m, ok := d.cache.GetMetrics(ctx.Request.Context(), id); ok {
			metrics = &m
		}
	}

	return packets.DisplayHealthResponse{
		DisplayID:        id,
		Status:           display.Status,
		UptimePercentage: display.UptimePercentage,
		HealthScore:      score,
		RecentErrors:     recent,
		Metrics:          metrics,
	}, nil
}

func (d *DisplayController) setDebug(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	var request packets.SetDebugRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if _, err := d.store.GetDisplayByID(id); err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "display not found"}
	}

	enabled := *request.Enabled
	if d.cache != nil {
		if err := d.cache.SetDebug(ctx.Request.Context(), id, enabled); err != nil {
			return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not persist debug flag"}
		}
	}
	d.bus.Publish(bus.TopicDisplayDebug, bus.DisplayDebugPayload{
		DisplayID: id,
		Enabled:   enabled,
		Timestamp: time.Now(),
	})
	return gin.H{"display_id": id, "enabled": enabled}, nil
}

func (d *DisplayController) issuePairingCode(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	if _, err := d.store.GetDisplayByID(id); err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "display not found"}
	}

	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not generate pairing code"}
	}
	code := hex.EncodeToString(buf)

	if d.cache == nil {
		return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: "pairing requires the cache"}
	}
	if err := d.cache.SetPairingCode(ctx.Request.Context(), code, id); err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not store pairing code"}
	}
	return packets.PairingCodeResponse{DisplayID: id, Code: code}, nil
}
