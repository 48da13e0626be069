package preload

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/api"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Connectivity reports whether the backend is currently reachable.
type Connectivity interface {
	Connected() bool
}

// Exporter downloads the full offline catalogs.
type Exporter interface {
	CustomersExport(ctx context.Context) (*domain.ExportEnvelope, error)
	PackagesExport(ctx context.Context) (*domain.ExportEnvelope, error)
}

// DataPlane is the slice of the API facade the warm-up drives. Each read
// primes one collection cache via its background refresh.
type DataPlane interface {
	GetShops(ctx context.Context) api.ReadResult[domain.Shop]
	GetRefills(ctx context.Context, opts api.ListOptions) api.ReadResult[domain.Refill]
	GetSales(ctx context.Context, opts api.ListOptions) api.ReadResult[domain.Sale]
	GetCredits(ctx context.Context, opts api.ListOptions) api.ReadResult[domain.Credit]
	GetExpenses(ctx context.Context, opts api.ListOptions) api.ReadResult[domain.Expense]
	GetStockItems(ctx context.Context, opts api.ListOptions) api.ReadResult[domain.StockItem]
	GetStockLogs(ctx context.Context, opts api.ListOptions) api.ReadResult[domain.StockLog]
	GetMeterReadings(ctx context.Context, opts api.ListOptions) api.ReadResult[domain.MeterReading]
	GetSMSHistory(ctx context.Context, opts api.ListOptions) api.ReadResult[domain.SMSRecord]
	GetLowStock(ctx context.Context) api.ReadResult[domain.StockItem]
}

// Report summarises one warm-up pass.
type Report struct {
	Refreshed int  `json:"refreshed"`
	Failed    int  `json:"failed"`
	Customers int  `json:"customers"`
	Packages  int  `json:"packages"`
	Skipped   bool `json:"skipped"`
}

// Service fills the caches right after login so the app works offline from
// the first screen. Best effort throughout: a collection that fails to load
// is logged and skipped, never surfaced.
type Service interface {
	Run(ctx context.Context) *Report
}

type service struct {
	log     zerolog.Logger
	store   *cache.Store
	client  Exporter
	monitor Connectivity
	data    DataPlane
}

func NewService(log logger.Logger, store *cache.Store, client Exporter, monitor Connectivity, data DataPlane) Service {
	return &service{
		log:     log.With().Str("module", "preload").Logger(),
		store:   store,
		client:  client,
		monitor: monitor,
		data:    data,
	}
}

func (s *service) Run(ctx context.Context) *Report {
	if !s.monitor.Connected() {
		s.log.Debug().Msg("warm-up skipped, offline")
		return &Report{Skipped: true}
	}

	start := time.Now()
	report := &Report{}

	var wg sync.WaitGroup
	var customers, packages int
	wg.Add(2)
	go func() {
		defer wg.Done()
		customers = s.loadCustomers(ctx)
	}()
	go func() {
		defer wg.Done()
		packages = s.loadPackages(ctx)
	}()

	// every read fires its refresh concurrently; awaiting them one by one
	// just collects the results
	waits := []func() error{
		awaitRefresh(s.data.GetShops(ctx)),
		awaitRefresh(s.data.GetRefills(ctx, api.ListOptions{})),
		awaitRefresh(s.data.GetSales(ctx, api.ListOptions{})),
		awaitRefresh(s.data.GetStockItems(ctx, api.ListOptions{})),
		awaitRefresh(s.data.GetStockLogs(ctx, api.ListOptions{})),
		awaitRefresh(s.data.GetCredits(ctx, api.ListOptions{})),
		awaitRefresh(s.data.GetExpenses(ctx, api.ListOptions{})),
		awaitRefresh(s.data.GetMeterReadings(ctx, api.ListOptions{})),
		awaitRefresh(s.data.GetSMSHistory(ctx, api.ListOptions{})),
		awaitRefresh(s.data.GetLowStock(ctx)),
	}
	for _, wait := range waits {
		if err := wait(); err != nil {
			report.Failed++
			continue
		}
		report.Refreshed++
	}

	wg.Wait()
	report.Customers = customers
	report.Packages = packages

	s.log.Info().
		Int("refreshed", report.Refreshed).
		Int("failed", report.Failed).
		Int("customers", report.Customers).
		Int("packages", report.Packages).
		Str("elapsed", time.Since(start).Round(time.Millisecond).String()).
		Msg("cache warm-up complete")
	return report
}

func awaitRefresh[T any](res api.ReadResult[T]) func() error {
	return func() error {
		r := <-res.Fresh
		return r.Err
	}
}

// loadCustomers replaces the customer catalog with the full export. Pending
// customers queued offline ride on top of the fresh catalog rather than
// being wiped by it.
func (s *service) loadCustomers(ctx context.Context) int {
	env, err := s.client.CustomersExport(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("customer export failed, keeping cached catalog")
		return 0
	}
	if _, err := s.store.MergeWithFresh(ctx, "customers", env.Results); err != nil {
		s.log.Error().Err(err).Msg("could not store customer catalog")
		return 0
	}
	s.log.Debug().
		Int("count", len(env.Results)).
		Str("size", humanize.Bytes(payloadSize(env.Results))).
		Msg("customer catalog cached")
	return len(env.Results)
}

func (s *service) loadPackages(ctx context.Context) int {
	env, err := s.client.PackagesExport(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("package export failed, keeping cached catalog")
		return 0
	}
	if err := s.store.Set(ctx, "packages", env.Results); err != nil {
		s.log.Error().Err(err).Msg("could not store package catalog")
		return 0
	}
	s.log.Debug().
		Int("count", len(env.Results)).
		Str("size", humanize.Bytes(payloadSize(env.Results))).
		Msg("package catalog cached")
	return len(env.Results)
}

func payloadSize(records []json.RawMessage) uint64 {
	var n uint64
	for _, r := range records {
		n += uint64(len(r))
	}
	return n
}
