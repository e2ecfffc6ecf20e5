package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/http/api"
	"github.com/Brightline-Displays/beacon/internal/http/api/admin/packets"
)

// Settings storage lives in an external collaborator; this module only
// publishes mutation events so live clients hear about the change.
type SettingsController struct {
	bus *bus.Bus
}

func SettingsModule(b *bus.Bus) api.Module {
	ctl := &SettingsController{bus: b}
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUT("/settings/:key", ctl.updateSetting)
	})
}

func (s *SettingsController) updateSetting(ctx *gin.Context) (any, *api.Error) {
	key := ctx.Param("key")
	if key == "" {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "setting key required"}
	}
	var request packets.UpdateSettingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}

	payload := bus.SettingsPayload{Key: key, Value: request.Value}
	s.bus.Publish(bus.TopicSettingsUpdated, payload)
	switch key {
	case "fpcon":
		s.bus.Publish(bus.TopicSettingsFPCONChanged, payload)
	case "lan":
		s.bus.Publish(bus.TopicSettingsLANChanged, payload)
	}
	return gin.H{"key": key, "published": true}, nil
}
