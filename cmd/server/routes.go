package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/health"
	"github.com/Brightline-Displays/beacon/internal/http/api"
	adminapi "github.com/Brightline-Displays/beacon/internal/http/api/admin/endpoints"
	tvapi "github.com/Brightline-Displays/beacon/internal/http/api/tv/endpoints"
	"github.com/Brightline-Displays/beacon/internal/http/middleware"
	livehub "github.com/Brightline-Displays/beacon/internal/hub"
	"github.com/Brightline-Displays/beacon/internal/jobs"
	redisclient "github.com/Brightline-Displays/beacon/internal/redis"
)

// RegisterRoutes sets up all application routes.
func RegisterRoutes(
	r *gin.Engine,
	env Environment,
	store db.Store,
	dispatcher *jobs.Dispatcher,
	b *bus.Bus,
	h *livehub.Hub,
	monitor *health.Monitor,
	cache *redisclient.Cache,
) {
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		AllowCredentials: false,
	}))

	api.MountGroup(r, api.GroupConfig{
		Prefix:     "/api/admin",
		Middleware: []gin.HandlerFunc{middleware.AdminAuthMiddleware(env.SecretKey)},
	},
		adminapi.ScheduleModule(store, dispatcher, b),
		adminapi.GroupModule(store, dispatcher),
		adminapi.DisplayModule(store, monitor, cache, b),
		adminapi.SettingsModule(b),
	)

	tvCtl := tvapi.NewTvController(store, monitor, cache, env.SecretKey)

	// pairing and the event stream authenticate themselves
	api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/tv",
	},
		tvapi.PairingModule(tvCtl),
		tvapi.EventsModule(tvapi.NewEventsController(h, env.SecretKey)),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:     "/api/tv",
		Middleware: []gin.HandlerFunc{middleware.DeviceAuthMiddleware(env.SecretKey)},
	},
		tvapi.DeviceModule(tvCtl),
	)
}
