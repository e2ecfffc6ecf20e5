package endpoints

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/http/api"
	"github.com/Brightline-Displays/beacon/internal/http/api/admin/packets"
	"github.com/Brightline-Displays/beacon/internal/jobs"
)

type GroupController struct {
	store      db.Store
	dispatcher *jobs.Dispatcher
}

func NewGroupController(store db.Store, dispatcher *jobs.Dispatcher) *GroupController {
	return &GroupController{store: store, dispatcher: dispatcher}
}

func GroupModule(store db.Store, dispatcher *jobs.Dispatcher) api.Module {
	ctl := NewGroupController(store, dispatcher)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/groups", ctl.listGroups)
		c.POST("/groups", ctl.createGroup)
		c.GET("/groups/:id", ctl.getGroup)
		c.PUT("/groups/:id", ctl.updateGroup)
		c.DELETE("/groups/:id", ctl.deleteGroup)

		// membership
		c.POST("/groups/:id/displays", ctl.addDisplay)
		c.DELETE("/groups/:id/displays/:display_id", ctl.removeDisplay)
	})
}

func (g *GroupController) listGroups(ctx *gin.Context) (any, *api.Error) {
	groups, err := g.store.ListDisplayGroups()
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "failed to list groups"}
	}
	return groups, nil
}

func (g *GroupController) createGroup(ctx *gin.Context) (any, *api.Error) {
	var request packets.CreateGroupRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	group, err := g.store.CreateDisplayGroup(request.Name, request.Description)
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not create group"}
	}
	return group, nil
}

func (g *GroupController) getGroup(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	group, err := g.store.GetDisplayGroupByID(id)
	if err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "group not found"}
	}
	displays, err := g.store.ListDisplaysInGroup(id)
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "failed to list group members"}
	}
	return packets.GroupResponse{Group: group, Displays: displays}, nil
}

func (g *GroupController) updateGroup(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	var request packets.UpdateGroupRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	group, err := g.store.UpdateDisplayGroup(id, request.Name, request.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &api.Error{Code: http.StatusNotFound, Message: "group not found"}
		}
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not update group"}
	}
	return group, nil
}

func (g *GroupController) deleteGroup(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}

	// cancel fan-out jobs for schedules targeting the group before the
	// membership rows disappear
	if schedules, err := g.store.ListActiveSchedulesForGroup(id); err == nil {
		for _, s := range schedules {
			g.dispatcher.Disarm(s)
		}
	}

	if err := g.store.DeleteDisplayGroup(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &api.Error{Code: http.StatusNotFound, Message: "group not found"}
		}
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not delete group"}
	}
	return gin.H{"message": "deleted"}, nil
}

func (g *GroupController) addDisplay(ctx *gin.Context) (any, *api.Error) {
	groupID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid group id"}
	}
	var request packets.AddGroupMemberRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}
	if _, err := g.store.GetDisplayByID(request.DisplayID); err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "display not found"}
	}
	if err := g.store.AddDisplayToGroup(groupID, request.DisplayID); err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not add display to group"}
	}

	// membership changed: re-derive jobs for the group's active schedules
	// so the new member starts receiving them now
	if err := g.dispatcher.RearmGroup(groupID); err != nil {
		log.Error().Err(err).Int("group_id", groupID).Msg("failed to re-derive group jobs")
	}
	return gin.H{"message": "added"}, nil
}

func (g *GroupController) removeDisplay(ctx *gin.Context) (any, *api.Error) {
	groupID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid group id"}
	}
	displayID, err := strconv.Atoi(ctx.Param("display_id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid display id"}
	}
	if err := g.store.RemoveDisplayFromGroup(groupID, displayID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &api.Error{Code: http.StatusNotFound, Message: "membership not found"}
		}
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not remove display from group"}
	}

	if err := g.dispatcher.RearmGroup(groupID); err != nil {
		log.Error().Err(err).Int("group_id", groupID).Msg("failed to re-derive group jobs")
	}
	return gin.H{"message": "removed"}, nil
}
