package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/api"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/auth"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/config"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/database"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/events"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/netmon"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/preload"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/queue"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/rest"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/scheduler"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/server"
	syncengine "github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/sync"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/token"

	"github.com/asaskevich/EventBus"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "", "path to configuration file")
	pflag.Parse()

	// read config
	cfg := config.New(configPath, version)

	// init new logger
	log := logger.New(cfg.Config)

	// init dynamic config
	cfg.DynamicReload(log)

	// setup internal eventbus
	bus := EventBus.New()

	// open database connection
	db, err := database.NewDB(cfg.Config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create new db")
	}

	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("could not open db connection")
	}

	log.Info().Msgf("Starting HAMU data plane")
	log.Info().Msgf("Version: %s", version)
	log.Info().Msgf("Commit: %s", commit)
	log.Info().Msgf("Build date: %s", date)
	log.Info().Msgf("Log-level: %s", cfg.Config.Logging.Level)
	log.Info().Msgf("Using database: %s", db.Driver)

	ctx := context.Background()

	// setup repos
	kvRepo := database.NewKVRepo(log, db)

	// setup services
	var (
		tokenService = token.NewService(log, kvRepo, cfg.Config)
		restClient   = rest.NewClient(log, cfg.Config, tokenService)
		store        = cache.NewStore(ctx, log, kvRepo, cfg.Config)
		queueService = queue.NewService(ctx, log, kvRepo, bus)
		monitor      = netmon.NewService(log, cfg.Config, bus)
		engine       = syncengine.NewService(log, bus, monitor, queueService, store, restClient, nil)
		dataPlane    = api.NewService(log, bus, store, queueService, restClient, monitor, engine)
		warmer       = preload.NewService(log, store, restClient, monitor, dataPlane)
		session      = auth.NewService(log, bus, tokenService, restClient, store)
		sched        = scheduler.NewService(log, cfg.Config, engine, monitor, store, queueService, restClient)
	)

	// register event subscribers
	events.NewSubscribers(log, bus, cfg.Config, engine, session, warmer)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	srv := server.NewServer(log, cfg.Config, monitor, engine, sched)
	if err := srv.Start(); err != nil {
		log.Fatal().Stack().Err(err).Msg("could not start server")
		return
	}

	// a stored session warms the caches via the auth:login subscriber
	if session.Restore(ctx) {
		log.Info().Msg("Previous session restored")
	}

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			log.Log().Msg("shutting down server sighup")
			srv.Shutdown()
			if err := db.Close(); err != nil {
				log.Error().Stack().Err(err).Msg("could not close db connection")
			}
			os.Exit(1)
		case syscall.SIGINT, syscall.SIGQUIT:
			log.Info().Msg("Shutting down server due to SIGINT/SIGQUIT...")
			srv.Shutdown()
			if err := db.Close(); err != nil {
				log.Error().Stack().Err(err).Msg("could not close db connection")
			}
			os.Exit(0)
		case syscall.SIGKILL, syscall.SIGTERM:
			log.Info().Msg("Shutting down server due to SIGKILL/SIGTERM...")
			srv.Shutdown()
			if err := db.Close(); err != nil {
				log.Error().Stack().Err(err).Msg("could not close db connection")
			}
			os.Exit(0)
		}
	}
}
