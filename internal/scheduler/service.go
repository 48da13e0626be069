package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Engine wakes the sync loop.
type Engine interface {
	Notify()
}

// Connectivity reports whether the backend is currently reachable.
type Connectivity interface {
	Connected() bool
}

// Queue exposes the maintenance surface of the offline queue.
type Queue interface {
	PruneFailed(ctx context.Context, cutoff time.Time) (int, error)
}

// Refresher is the slice of the REST client the refresh job drives.
type Refresher interface {
	Me(ctx context.Context) (*domain.UserProfile, error)
	Page(ctx context.Context, collection string, page int) (*domain.PageEnvelope, error)
	CustomersExport(ctx context.Context) (*domain.ExportEnvelope, error)
	PackagesExport(ctx context.Context) (*domain.ExportEnvelope, error)
	LowStock(ctx context.Context) ([]json.RawMessage, error)
}

type Service interface {
	Start()
	Stop()
	// AddJob adds a job that runs periodically at the given interval.
	AddJob(job cron.Job, interval time.Duration, identifier string) (int, error)
	// AddJobWithSpec adds a job using a cron spec string (e.g., "0 3 * * *").
	AddJobWithSpec(job cron.Job, spec string, identifier string) (int, error)
	RemoveJobByIdentifier(id string) error
	GetNextRun(id string) (time.Time, error)
}

type service struct {
	log     zerolog.Logger
	config  *domain.Config
	engine  Engine
	monitor Connectivity
	store   *cache.Store
	queue   Queue
	client  Refresher

	cron *cron.Cron
	jobs map[string]cron.EntryID
	m    sync.RWMutex
}

func NewService(log logger.Logger, config *domain.Config, engine Engine, monitor Connectivity,
	store *cache.Store, queue Queue, client Refresher) Service {
	return &service{
		log:     log.With().Str("module", "scheduler").Logger(),
		config:  config,
		engine:  engine,
		monitor: monitor,
		store:   store,
		queue:   queue,
		client:  client,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
		)),
		jobs: map[string]cron.EntryID{},
	}
}

func (s *service) Start() {
	s.log.Info().Msg("Starting scheduler service")

	s.cron.Start()

	go s.addAppJobs()
}

func (s *service) addAppJobs() {
	s.log.Info().Msg("Adding application-specific scheduled jobs")

	sweepInterval := time.Duration(s.config.Sync.SweepIntervalMinutes) * time.Minute
	if sweepInterval <= 0 {
		sweepInterval = 15 * time.Minute
	}
	sweep := &SyncSweepJob{
		Name:   "sync-sweep",
		Log:    s.log.With().Str("job", "sync-sweep").Logger(),
		Engine: s.engine,
	}
	if _, err := s.AddJob(sweep, sweepInterval, "sync-sweep"); err != nil {
		s.log.Error().Err(err).Msg("Failed to add 'sync-sweep' job")
	}

	refreshInterval := time.Duration(s.config.Cache.StaleRefreshMinutes) * time.Minute
	if refreshInterval <= 0 {
		refreshInterval = time.Hour
	}
	refresh := &StaleCacheRefreshJob{
		Name:    "stale-cache-refresh",
		Log:     s.log.With().Str("job", "stale-cache-refresh").Logger(),
		Store:   s.store,
		Client:  s.client,
		Monitor: s.monitor,
	}
	if _, err := s.AddJob(refresh, refreshInterval, "stale-cache-refresh"); err != nil {
		s.log.Error().Err(err).Msg("Failed to add 'stale-cache-refresh' job")
	}

	prune := &QueuePruneJob{
		Name:          "queue-prune",
		Log:           s.log.With().Str("job", "queue-prune").Logger(),
		Queue:         s.queue,
		RetentionDays: s.config.Sync.FailedRetentionDays,
	}
	// daily, during the quiet hours
	if _, err := s.AddJobWithSpec(prune, "0 3 * * *", "queue-prune"); err != nil {
		s.log.Error().Err(err).Msg("Failed to add 'queue-prune' job")
	}

	s.log.Info().Msg("Finished adding application-specific scheduled jobs")
}

func (s *service) Stop() {
	s.log.Info().Msg("Stopping scheduler service")
	s.cron.Stop()
}

func (s *service) AddJob(job cron.Job, interval time.Duration, identifier string) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if _, exists := s.jobs[identifier]; exists {
		s.log.Warn().Str("identifier", identifier).Msg("Job with this identifier already exists, skipping add.")
		return 0, fmt.Errorf("job with identifier '%s' already exists", identifier)
	}

	entryID, err := s.cron.AddJob(fmt.Sprintf("@every %s", interval.String()), cron.NewChain(
		cron.SkipIfStillRunning(cron.DefaultLogger)).Then(job))
	if err != nil {
		s.log.Error().Err(err).Str("identifier", identifier).Msg("Failed to add job with interval")
		return 0, fmt.Errorf("failed to add job '%s': %w", identifier, err)
	}

	s.log.Info().Str("identifier", identifier).Dur("interval", interval).Int("entryID", int(entryID)).Msg("Scheduled job added")
	s.jobs[identifier] = entryID
	return int(entryID), nil
}

func (s *service) AddJobWithSpec(job cron.Job, spec string, identifier string) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if _, exists := s.jobs[identifier]; exists {
		s.log.Warn().Str("identifier", identifier).Msg("Job with this identifier already exists, skipping add.")
		return 0, fmt.Errorf("job with identifier '%s' already exists", identifier)
	}

	entryID, err := s.cron.AddJob(spec, cron.NewChain(
		cron.SkipIfStillRunning(cron.DefaultLogger)).Then(job))
	if err != nil {
		s.log.Error().Err(err).Str("identifier", identifier).Str("spec", spec).Msg("Failed to add job with spec")
		return 0, fmt.Errorf("failed to add job '%s' with spec '%s': %w", identifier, spec, err)
	}

	s.log.Info().Str("identifier", identifier).Str("spec", spec).Int("entryID", int(entryID)).Msg("Scheduled job added")
	s.jobs[identifier] = entryID
	return int(entryID), nil
}

func (s *service) RemoveJobByIdentifier(id string) error {
	s.m.Lock()
	defer s.m.Unlock()

	v, ok := s.jobs[id]
	if !ok {
		return nil
	}

	s.log.Debug().Msgf("scheduler.Remove: removing job: %v", id)

	s.cron.Remove(v)
	delete(s.jobs, id)
	return nil
}

func (s *service) GetNextRun(id string) (time.Time, error) {
	entry := s.getEntryById(id)

	if !entry.Valid() {
		return time.Time{}, nil
	}

	s.log.Debug().Msgf("scheduler.GetNextRun: %s next run: %s", id, entry.Next)

	return entry.Next, nil
}

func (s *service) getEntryById(id string) cron.Entry {
	s.m.Lock()
	defer s.m.Unlock()

	v, ok := s.jobs[id]
	if !ok {
		return cron.Entry{}
	}

	return s.cron.Entry(v)
}
