package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"

	"github.com/rs/zerolog"
)

// SyncSweepJob periodically wakes the sync engine so queue items written
// while the app was online still drain without a connectivity edge.
type SyncSweepJob struct {
	Name   string
	Log    zerolog.Logger
	Engine Engine
}

func (j *SyncSweepJob) Run() {
	j.Log.Debug().Msg("Periodic sweep, waking sync engine")
	j.Engine.Notify()
}

// StaleCacheRefreshJob re-fetches cached collections whose sync cursor has
// outlived the TTL. Catalog collections go through their export endpoints,
// everything else through page one of its list endpoint.
type StaleCacheRefreshJob struct {
	Name    string
	Log     zerolog.Logger
	Store   *cache.Store
	Client  Refresher
	Monitor Connectivity
}

func (j *StaleCacheRefreshJob) Run() {
	if !j.Monitor.Connected() {
		j.Log.Debug().Msg("Offline, skipping stale cache refresh")
		return
	}
	ctx := context.Background()

	collections, err := j.Store.CachedCollections(ctx)
	if err != nil {
		j.Log.Error().Err(err).Msg("Failed to list cached collections")
		return
	}

	refreshed, failed := 0, 0
	for _, name := range collections {
		if name == "dashboard-stats" {
			// generated locally, nothing to fetch
			continue
		}
		if !j.Store.Expired(ctx, name) {
			continue
		}
		if err := j.refresh(ctx, name); err != nil {
			j.Log.Warn().Err(err).Str("collection", name).Msg("Refresh failed")
			failed++
			continue
		}
		if err := j.Store.SetLastSync(ctx, name, time.Now()); err != nil {
			j.Log.Warn().Err(err).Str("collection", name).Msg("Could not record sync cursor")
		}
		refreshed++
	}

	if refreshed > 0 || failed > 0 {
		j.Log.Info().Int("refreshed", refreshed).Int("failed", failed).Msg("Stale cache refresh finished")
	}
}

func (j *StaleCacheRefreshJob) refresh(ctx context.Context, collection string) error {
	switch collection {
	case "customers":
		env, err := j.Client.CustomersExport(ctx)
		if err != nil {
			return err
		}
		_, err = j.Store.MergeWithFresh(ctx, collection, env.Results)
		return err
	case "packages":
		env, err := j.Client.PackagesExport(ctx)
		if err != nil {
			return err
		}
		return j.Store.Set(ctx, collection, env.Results)
	case "low-stock":
		records, err := j.Client.LowStock(ctx)
		if err != nil {
			return err
		}
		return j.Store.Set(ctx, collection, records)
	case "user-profile":
		me, err := j.Client.Me(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(me)
		if err != nil {
			return err
		}
		return j.Store.Set(ctx, collection, []json.RawMessage{raw})
	default:
		env, err := j.Client.Page(ctx, collection, 1)
		if err != nil {
			return err
		}
		_, err = j.Store.MergeWithFresh(ctx, collection, env.Results)
		return err
	}
}

// QueuePruneJob drops failed queue items that outlived the retention window.
// Retention of zero disables pruning entirely.
type QueuePruneJob struct {
	Name          string
	Log           zerolog.Logger
	Queue         Queue
	RetentionDays int
}

func (j *QueuePruneJob) Run() {
	if j.RetentionDays <= 0 {
		j.Log.Debug().Msg("Failed item retention disabled, keeping everything")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -j.RetentionDays)
	dropped, err := j.Queue.PruneFailed(context.Background(), cutoff)
	if err != nil {
		j.Log.Error().Err(err).Msg("Failed to prune queue")
		return
	}
	if dropped > 0 {
		j.Log.Info().Int("dropped", dropped).Int("retention_days", j.RetentionDays).Msg("Pruned failed queue items past retention")
	}
}
