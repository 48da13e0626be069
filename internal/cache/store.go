package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"

	"github.com/google/uuid"
	"github.com/hashicorp/go-version"
	"github.com/rs/zerolog"
)

// schemaVersion tags cached blobs. A stored version from a different major
// means the record shapes are no longer trusted and every collection blob is
// discarded instead of migrated; the next refresh rebuilds the cache. Queued
// mutations survive, their payloads travel with their endpoint.
const schemaVersion = "1.0.0"

// blob is the stored shape of one collection.
type blob struct {
	Data      []json.RawMessage `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	Expiry    time.Time         `json:"expiry"`
}

// Store keeps one blob per domain collection in the KV store, plus the
// per-entity sync cursor. Reads never fail: a missing or corrupt blob reads
// as absent. Read-modify-write operations serialise per collection.
type Store struct {
	log  zerolog.Logger
	repo domain.KVRepo
	ttl  time.Duration

	m     sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(ctx context.Context, log logger.Logger, repo domain.KVRepo, cfg *domain.Config) *Store {
	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &Store{
		log:   log.With().Str("module", "cache").Logger(),
		repo:  repo,
		ttl:   ttl,
		locks: map[string]*sync.Mutex{},
	}
	s.gate(ctx)
	return s
}

// gate discards every collection blob when the stored schema version is
// missing, unreadable, or from a different major, then records the current
// version. ClearAll rewrites the marker, so all three paths funnel there.
func (s *Store) gate(ctx context.Context) {
	current := version.Must(version.NewVersion(schemaVersion))

	raw, err := s.repo.Get(ctx, domain.SchemaVersionKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not read cache schema version")
		return
	}

	if len(raw) > 0 {
		stored, err := version.NewVersion(string(raw))
		if err == nil && stored.Segments()[0] == current.Segments()[0] {
			return
		}
		s.log.Info().Str("stored", string(raw)).Str("current", schemaVersion).
			Msg("cache schema changed, discarding cached collections")
	}

	if err := s.ClearAll(ctx); err != nil {
		s.log.Error().Err(err).Msg("failed to discard cached collections")
	}
}

func (s *Store) lock(collection string) *sync.Mutex {
	s.m.Lock()
	defer s.m.Unlock()
	l, ok := s.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		s.locks[collection] = l
	}
	return l
}

// Get returns the cached records for a collection and whether a blob exists.
// A corrupt blob reads as absent.
func (s *Store) Get(ctx context.Context, collection string) ([]json.RawMessage, bool) {
	raw, err := s.repo.Get(ctx, domain.CollectionKey(collection))
	if err != nil {
		s.log.Warn().Err(err).Str("collection", collection).Msg("cache read failed")
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		s.log.Warn().Err(err).Str("collection", collection).Msg("discarding corrupt cache blob")
		return nil, false
	}
	return b.Data, true
}

// Set overwrites a collection blob.
func (s *Store) Set(ctx context.Context, collection string, records []json.RawMessage) error {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	return s.write(ctx, collection, records)
}

func (s *Store) write(ctx context.Context, collection string, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	now := time.Now()
	raw, err := json.Marshal(blob{Data: records, Timestamp: now, Expiry: now.Add(s.ttl)})
	if err != nil {
		return errors.Wrap(err, "failed to encode %s cache", collection)
	}
	if err := s.repo.Set(ctx, domain.CollectionKey(collection), raw); err != nil {
		return errors.Wrap(err, "failed to persist %s cache", collection)
	}
	return nil
}

// MergeWithFresh folds a server page into a collection: pending records stay
// at the front in their original order, the fresh records follow in server
// order. No dedupe happens here; a pending record disappears only when the
// sync engine removes it after the server acknowledges the queue item
// behind it.
func (s *Store) MergeWithFresh(ctx context.Context, collection string, fresh []json.RawMessage) ([]json.RawMessage, error) {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	existing, _ := s.Get(ctx, collection)
	merged := make([]json.RawMessage, 0, len(existing)+len(fresh))
	for _, rec := range existing {
		if isPending(rec) {
			merged = append(merged, rec)
		}
	}
	merged = append(merged, fresh...)

	if err := s.write(ctx, collection, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// AddPending prepends a locally originated record, assigning a client id when
// the caller did not bring one and stamping the overlay markers.
func (s *Store) AddPending(ctx context.Context, collection string, record json.RawMessage) (json.RawMessage, error) {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	m := map[string]json.RawMessage{}
	if len(record) > 0 {
		if err := json.Unmarshal(record, &m); err != nil {
			return nil, errors.Wrap(err, "pending %s record is not a json object", collection)
		}
	}
	if recordClientID(record) == "" {
		setString(m, "client_id", uuid.NewString())
	}
	m["_pending"] = json.RawMessage("true")
	setString(m, "_createdAt", time.Now().Format(time.RFC3339Nano))

	stamped, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode pending %s record", collection)
	}

	existing, _ := s.Get(ctx, collection)
	if err := s.write(ctx, collection, append([]json.RawMessage{stamped}, existing...)); err != nil {
		return nil, err
	}
	return stamped, nil
}

// RemovePending drops the pending record carrying clientID. Confirmed records
// that still carry the same client id are untouched.
func (s *Store) RemovePending(ctx context.Context, collection string, clientID string) error {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	existing, ok := s.Get(ctx, collection)
	if !ok {
		return nil
	}

	kept := make([]json.RawMessage, 0, len(existing))
	removed := false
	for _, rec := range existing {
		if !removed && isPending(rec) && recordClientID(rec) == clientID {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return nil
	}
	return s.write(ctx, collection, kept)
}

// ConfirmPending replaces the pending record carrying clientID with the
// server's acknowledged body, in place. When the overlay record is already
// gone the server record is prepended instead, so a confirmed write is
// always visible in the cache.
func (s *Store) ConfirmPending(ctx context.Context, collection string, clientID string, server json.RawMessage) error {
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	existing, _ := s.Get(ctx, collection)
	replaced := false
	records := make([]json.RawMessage, 0, len(existing)+1)
	for _, rec := range existing {
		if !replaced && isPending(rec) && recordClientID(rec) == clientID {
			records = append(records, server)
			replaced = true
			continue
		}
		records = append(records, rec)
	}
	if !replaced {
		records = append([]json.RawMessage{server}, records...)
	}
	return s.write(ctx, collection, records)
}

// UpdateCustomerCreditBalance applies an optimistic delta to one cached
// customer's credit balance, keeping the exported record in step with a
// queued credit or repayment.
func (s *Store) UpdateCustomerCreditBalance(ctx context.Context, customerID int64, delta float64) error {
	collection := domain.QueueTypeCustomer.Collection()
	l := s.lock(collection)
	l.Lock()
	defer l.Unlock()

	existing, ok := s.Get(ctx, collection)
	if !ok {
		return nil
	}

	for i, rec := range existing {
		var probe struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(rec, &probe); err != nil || probe.ID != customerID {
			continue
		}

		var m map[string]json.RawMessage
		if err := json.Unmarshal(rec, &m); err != nil {
			return errors.Wrap(err, "corrupt cached customer %d", customerID)
		}
		var balance domain.Money
		if raw, ok := m["credit_balance"]; ok {
			if err := json.Unmarshal(raw, &balance); err != nil {
				balance = 0
			}
		}
		updated, err := json.Marshal(balance + domain.Money(delta))
		if err != nil {
			return errors.Wrap(err, "failed to encode credit balance")
		}
		m["credit_balance"] = updated

		patched, err := json.Marshal(m)
		if err != nil {
			return errors.Wrap(err, "failed to encode customer %d", customerID)
		}
		existing[i] = patched
		return s.write(ctx, collection, existing)
	}
	return nil
}

// LastSync returns the per-entity timestamps of the last successful refresh.
func (s *Store) LastSync(ctx context.Context) map[string]time.Time {
	cursors := map[string]time.Time{}

	raw, err := s.repo.Get(ctx, domain.LastSyncKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not read sync cursors")
		return cursors
	}
	if raw == nil {
		return cursors
	}
	if err := json.Unmarshal(raw, &cursors); err != nil {
		s.log.Warn().Err(err).Msg("discarding corrupt sync cursors")
		return map[string]time.Time{}
	}
	return cursors
}

// SetLastSync records a successful refresh time for one entity.
func (s *Store) SetLastSync(ctx context.Context, entity string, at time.Time) error {
	l := s.lock("last_sync")
	l.Lock()
	defer l.Unlock()

	cursors := s.LastSync(ctx)
	cursors[entity] = at

	raw, err := json.Marshal(cursors)
	if err != nil {
		return errors.Wrap(err, "failed to encode sync cursors")
	}
	if err := s.repo.Set(ctx, domain.LastSyncKey, raw); err != nil {
		return errors.Wrap(err, "failed to persist sync cursors")
	}
	return nil
}

// Expired reports whether a collection blob is past its expiry. Absent and
// corrupt blobs count as expired. Expiry never blocks a read; it only tells
// the refresh job which collections are worth refetching.
func (s *Store) Expired(ctx context.Context, collection string) bool {
	raw, err := s.repo.Get(ctx, domain.CollectionKey(collection))
	if err != nil || raw == nil {
		return true
	}
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return true
	}
	return time.Now().After(b.Expiry)
}

// CachedCollections lists the collections that currently have a blob.
func (s *Store) CachedCollections(ctx context.Context) ([]string, error) {
	keys, err := s.repo.ListKeys(ctx, domain.StorageKeyPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cache keys")
	}

	collections := make([]string, 0, len(keys))
	for _, k := range keys {
		switch k {
		case domain.QueueKey, domain.LastSyncKey, domain.SchemaVersionKey:
			continue
		}
		collections = append(collections, strings.TrimPrefix(k, domain.StorageKeyPrefix))
	}
	return collections, nil
}

// ClearAll wipes every cached collection, the sync cursor, and the schema
// marker, then re-records the marker. The offline queue is left alone:
// queued mutations belong to the user, not the cache.
func (s *Store) ClearAll(ctx context.Context) error {
	keys, err := s.repo.ListKeys(ctx, domain.StorageKeyPrefix)
	if err != nil {
		return errors.Wrap(err, "failed to list cache keys")
	}

	drop := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == domain.QueueKey {
			continue
		}
		drop = append(drop, k)
	}
	if len(drop) > 0 {
		if err := s.repo.Delete(ctx, drop...); err != nil {
			return errors.Wrap(err, "failed to delete cache blobs")
		}
		s.log.Debug().Int("keys", len(drop)).Msg("cleared cached collections")
	}

	if err := s.repo.Set(ctx, domain.SchemaVersionKey, []byte(schemaVersion)); err != nil {
		s.log.Warn().Err(err).Msg("could not record cache schema version")
	}
	return nil
}

func isPending(rec json.RawMessage) bool {
	var m struct {
		Pending bool `json:"_pending"`
	}
	return json.Unmarshal(rec, &m) == nil && m.Pending
}

func recordClientID(rec json.RawMessage) string {
	var m struct {
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(rec, &m); err != nil {
		return ""
	}
	return m.ClientID
}

func setString(m map[string]json.RawMessage, key string, value string) {
	raw, _ := json.Marshal(value)
	m[key] = raw
}
