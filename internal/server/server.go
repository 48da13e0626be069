package server

import (
	"sync"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/netmon"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/scheduler"
	syncengine "github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/sync"

	"github.com/rs/zerolog"
)

// Server owns the long-running pieces: the connectivity monitor, the sync
// engine's drain loop, and the cron scheduler. Start brings them up in
// dependency order and Shutdown tears them down in reverse.
type Server struct {
	log    zerolog.Logger
	config *domain.Config

	monitor   netmon.Service
	engine    syncengine.Service
	scheduler scheduler.Service

	lock sync.Mutex
}

func NewServer(log logger.Logger, config *domain.Config, monitor netmon.Service, engine syncengine.Service, sched scheduler.Service) *Server {
	return &Server{
		log:       log.With().Str("module", "server").Logger(),
		config:    config,
		monitor:   monitor,
		engine:    engine,
		scheduler: sched,
	}
}

func (s *Server) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.monitor.Start()
	s.engine.Start()
	s.scheduler.Start()

	s.log.Info().Msg("Data plane started")
	return nil
}

func (s *Server) Shutdown() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.log.Info().Msg("Shutting down server")

	s.scheduler.Stop()
	s.engine.Stop()
	s.monitor.Stop()
}
