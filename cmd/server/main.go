package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/health"
	livehub "github.com/Brightline-Displays/beacon/internal/hub"
	"github.com/Brightline-Displays/beacon/internal/jobs"
	"github.com/Brightline-Displays/beacon/internal/push"
	redisclient "github.com/Brightline-Displays/beacon/internal/redis"
)

func main() {
	env := LoadEnvironment()

	if err := db.Init(env.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}
	if err := db.RunMigrations(env.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}
	store := db.NewStore()

	var cache *redisclient.Cache
	if env.RedisAddress != "" {
		cache = redisclient.NewCache(env.RedisAddress, env.RedisUsername, env.RedisPassword)
	}

	var forwarder *push.Forwarder
	if env.MQTTBrokerURL != "" {
		f, err := push.NewForwarder(env.MQTTBrokerURL, "beacon-server")
		if err != nil {
			log.Warn().Err(err).Msg("MQTT egress disabled")
		} else {
			forwarder = f
			defer forwarder.Close()
		}
	}

	b := bus.New()
	defer b.Close()

	scheduler := jobs.NewTimerScheduler()
	defer scheduler.Stop()
	dispatcher := jobs.NewDispatcher(store, scheduler, b)

	h := livehub.New()

	// a typed nil *Cache must not end up inside the interface
	var metricsCache health.MetricsCache
	if cache != nil {
		metricsCache = cache
	}
	monitor := health.NewMonitor(store, b, metricsCache)

	registerSubscriptions(b, h, forwarder)

	// rebuild derived job state from the store
	if err := dispatcher.ArmAll(); err != nil {
		log.Fatal().Err(err).Msg("failed to arm schedules at boot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go h.Run(ctx)       // keepalives
	go monitor.Run(ctx) // staleness sweep

	if env.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	RegisterRoutes(r, env, store, dispatcher, b, h, monitor, cache)

	srv := &http.Server{Addr: env.ServerAddress, Handler: r}
	go func() {
		log.Info().Str("address", env.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
		os.Exit(1)
	}
}
