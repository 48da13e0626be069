package events

import (
	"context"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/preload"

	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
)

// Engine wakes the sync loop.
type Engine interface {
	Notify()
}

// Session force-closes the current login.
type Session interface {
	Logout(ctx context.Context) error
}

// Warmer refreshes the offline caches.
type Warmer interface {
	Run(ctx context.Context) *preload.Report
}

// Subscriber glues bus topics to the services that react to them: regained
// connectivity wakes the sync engine, a login warms the caches, an expired
// session forces a logout.
type Subscriber struct {
	log     zerolog.Logger
	bus     EventBus.Bus
	cfg     *domain.Config
	engine  Engine
	session Session
	warmer  Warmer
}

func NewSubscribers(log logger.Logger, bus EventBus.Bus, cfg *domain.Config, engine Engine, session Session, warmer Warmer) *Subscriber {
	s := &Subscriber{
		log:     log.With().Str("module", "events").Logger(),
		bus:     bus,
		cfg:     cfg,
		engine:  engine,
		session: session,
		warmer:  warmer,
	}
	s.register()
	return s
}

func (s *Subscriber) register() {
	s.subscribe(domain.EventNetworkConnected, s.onConnected)
	s.subscribe(domain.EventAuthLogin, s.onLogin)
	s.subscribe(domain.EventSessionExpired, s.onSessionExpired)
	s.subscribe(domain.EventSyncCompleted, s.onSyncCompleted)
}

func (s *Subscriber) subscribe(topic string, fn interface{}) {
	if err := s.bus.Subscribe(topic, fn); err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to topic")
	}
}

func (s *Subscriber) onConnected(_ bool) {
	if !s.cfg.Sync.Auto {
		s.log.Debug().Msg("Connectivity restored, automatic sync disabled")
		return
	}
	s.log.Debug().Msg("Connectivity restored, waking sync engine")
	s.engine.Notify()
}

// onLogin runs the warm-up detached so the login call returns immediately.
func (s *Subscriber) onLogin() {
	go s.warmer.Run(context.Background())
}

func (s *Subscriber) onSessionExpired() {
	s.log.Warn().Msg("Session expired and refresh failed, logging out")
	if err := s.session.Logout(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("Forced logout failed")
	}
}

func (s *Subscriber) onSyncCompleted(report *domain.SyncReport) {
	s.log.Info().
		Int("synced", report.Synced).
		Int("failed", report.Failed).
		Msg("Sync pass finished")
}
