package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
)

const probeTimeout = 5 * time.Second

// Service watches backend reachability. Transitions are published on the
// event bus as network:connected / network:disconnected, edges only, so
// subscribers never see the same state twice in a row.
type Service interface {
	Start()
	Stop()
	// Probe performs one reachability check immediately and returns the
	// resulting state.
	Probe(ctx context.Context) bool
	Connected() bool
}

type service struct {
	log    zerolog.Logger
	bus    EventBus.Bus
	client *http.Client

	probeURL string
	interval time.Duration

	m         sync.Mutex
	connected bool
	started   bool
	stop      chan struct{}
}

func NewService(log logger.Logger, cfg *domain.Config, bus EventBus.Bus) Service {
	probeURL := cfg.Network.ProbeURL
	if probeURL == "" {
		probeURL = cfg.API.BaseURL
	}
	interval := time.Duration(cfg.Network.ProbeIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &service{
		log:      log.With().Str("module", "netmon").Logger(),
		bus:      bus,
		client:   &http.Client{Timeout: probeTimeout},
		probeURL: probeURL,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (s *service) Start() {
	s.m.Lock()
	if s.started {
		s.m.Unlock()
		return
	}
	s.started = true
	s.m.Unlock()

	// Establish the initial state before the loop so subscribers wired
	// after Start observe a settled value.
	s.Probe(context.Background())

	go s.loop()
	s.log.Info().Str("probe_url", s.probeURL).Dur("interval", s.interval).Msg("Network monitor started")
}

func (s *service) Stop() {
	s.m.Lock()
	defer s.m.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.stop)
	s.log.Info().Msg("Network monitor stopped")
}

func (s *service) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Probe(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *service) Probe(ctx context.Context) bool {
	reachable := s.check(ctx)
	s.setState(reachable)
	return reachable
}

func (s *service) Connected() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.connected
}

// check counts any HTTP response as reachable; only transport failures mean
// the backend is away.
func (s *service) check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.probeURL, nil)
	if err != nil {
		s.log.Error().Err(err).Str("probe_url", s.probeURL).Msg("Invalid probe URL")
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Trace().Err(err).Msg("Reachability probe failed")
		return false
	}
	defer resp.Body.Close()

	return true
}

func (s *service) setState(connected bool) {
	s.m.Lock()
	changed := connected != s.connected
	s.connected = connected
	s.m.Unlock()

	if !changed {
		return
	}

	if connected {
		s.log.Info().Msg("Backend reachable")
		s.bus.Publish(domain.EventNetworkConnected, true)
	} else {
		s.log.Info().Msg("Backend unreachable, queueing mode")
		s.bus.Publish(domain.EventNetworkDisconnected, false)
	}
}
