package endpoints

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/http/api"
	"github.com/Brightline-Displays/beacon/internal/http/api/admin/packets"
	"github.com/Brightline-Displays/beacon/internal/jobs"
	"github.com/Brightline-Displays/beacon/internal/model"
)

type ScheduleController struct {
	store      db.Store
	dispatcher *jobs.Dispatcher
	bus        *bus.Bus
}

func NewScheduleController(store db.Store, dispatcher *jobs.Dispatcher, b *bus.Bus) *ScheduleController {
	return &ScheduleController{store: store, dispatcher: dispatcher, bus: b}
}

func ScheduleModule(store db.Store, dispatcher *jobs.Dispatcher, b *bus.Bus) api.Module {
	ctl := NewScheduleController(store, dispatcher, b)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedules", ctl.listSchedules)
		c.POST("/schedules", ctl.createSchedule)
		c.GET("/schedules/:id", ctl.getSchedule)
		c.PUT("/schedules/:id", ctl.updateSchedule)
		c.DELETE("/schedules/:id", ctl.deleteSchedule)

		// retained firing failures, for inspection
		c.GET("/jobs/failures", ctl.listFailedFirings)
	})
}

func (s *ScheduleController) listSchedules(ctx *gin.Context) (any, *api.Error) {
	list, err := s.store.ListSchedules()
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "failed to list schedules"}
	}
	return list, nil
}

func (s *ScheduleController) getSchedule(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}
	sc, err := s.store.GetSchedule(id)
	if err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "schedule not found"}
	}
	return sc, nil
}

func (s *ScheduleController) createSchedule(ctx *gin.Context) (any, *api.Error) {
	var request packets.CreateScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}

	active := true
	if request.IsActive != nil {
		active = *request.IsActive
	}
	params := db.ScheduleParams{
		DisplayID:      request.DisplayID,
		DisplayGroupID: request.DisplayGroupID,
		ContentID:      request.ContentID,
		ContentIDs:     request.ContentIDs,
		PlaylistID:     request.PlaylistID,
		StartTime:      request.StartTime,
		EndTime:        request.EndTime,
		RecurrenceRule: request.RecurrenceRule,
		Priority:       request.Priority,
		IsActive:       active,
	}
	if err := db.ValidateScheduleParams(params); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}

	sc, err := s.store.CreateSchedule(params)
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not create schedule"}
	}

	s.dispatcher.Arm(sc)
	s.bus.Publish(bus.TopicScheduleCreated, bus.SchedulePayload{Schedule: sc})
	return sc, nil
}

func (s *ScheduleController) updateSchedule(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}

	existing, err := s.store.GetSchedule(id)
	if err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "schedule not found"}
	}

	var request packets.UpdateScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}

	params := mergeScheduleUpdate(existing, request)
	if err := db.ValidateScheduleParams(params); err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: err.Error()}
	}

	// outstanding jobs must be gone before the mutation returns; the old
	// record drives cancellation so group expansion matches what was armed
	s.dispatcher.Disarm(existing)

	sc, err := s.store.UpdateSchedule(id, params)
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not update schedule"}
	}

	s.dispatcher.Rearm(sc)
	s.bus.Publish(bus.TopicScheduleUpdated, bus.SchedulePayload{Schedule: sc})
	return sc, nil
}

func (s *ScheduleController) deleteSchedule(ctx *gin.Context) (any, *api.Error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "invalid id"}
	}

	existing, err := s.store.GetSchedule(id)
	if err != nil {
		return nil, &api.Error{Code: http.StatusNotFound, Message: "schedule not found"}
	}

	// cancel one-shot and recurring jobs for every display the schedule
	// could still affect, then remove the record
	s.dispatcher.Disarm(existing)

	if err := s.store.DeleteSchedule(id); err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "could not delete schedule"}
	}

	s.bus.Publish(bus.TopicScheduleDeleted, bus.ScheduleDeletedPayload{ScheduleID: id})
	return gin.H{"message": "deleted"}, nil
}

func (s *ScheduleController) listFailedFirings(ctx *gin.Context) (any, *api.Error) {
	return s.dispatcher.FailedFirings(), nil
}

// mergeScheduleUpdate folds a partial update onto the stored schedule.
// Target fields replace as a pair, payload fields as a trio, so the XOR
// validations see the post-merge state.
func mergeScheduleUpdate(existing model.Schedule, request packets.UpdateScheduleRequest) db.ScheduleParams {
	params := db.ScheduleParams{
		DisplayID:      existing.DisplayID,
		DisplayGroupID: existing.DisplayGroupID,
		ContentID:      existing.ContentID,
		ContentIDs:     existing.ContentIDs,
		PlaylistID:     existing.PlaylistID,
		StartTime:      existing.StartTime,
		EndTime:        existing.EndTime,
		RecurrenceRule: existing.RecurrenceRule,
		Priority:       existing.Priority,
		IsActive:       existing.IsActive,
	}

	if request.DisplayID != nil || request.DisplayGroupID != nil {
		params.DisplayID = request.DisplayID
		params.DisplayGroupID = request.DisplayGroupID
	}
	if request.ContentID != nil || len(request.ContentIDs) > 0 || request.PlaylistID != nil {
		params.ContentID = request.ContentID
		params.ContentIDs = request.ContentIDs
		params.PlaylistID = request.PlaylistID
	}
	if request.StartTime != nil {
		params.StartTime = *request.StartTime
	}
	if request.ClearEndTime {
		params.EndTime = nil
	} else if request.EndTime != nil {
		params.EndTime = request.EndTime
	}
	if request.RecurrenceRule != nil {
		params.RecurrenceRule = request.RecurrenceRule
	}
	if request.Priority != nil {
		params.Priority = *request.Priority
	}
	if request.IsActive != nil {
		params.IsActive = *request.IsActive
	}
	return params
}
