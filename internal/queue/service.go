package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the durable FIFO of mutations waiting for the network. One
// instance per process owns the queue blob; every mutation persists before
// it returns, and every mutation announces the new pending count on the bus.
type Service interface {
	// Add appends a mutation. A missing client_id gets a fresh UUID, and the
	// type's timestamp field is stamped when the payload lacks it. An empty
	// method means POST.
	Add(ctx context.Context, itemType domain.QueueItemType, endpoint string, data map[string]json.RawMessage, method string) (*domain.QueueItem, error)
	// PendingItems returns, in FIFO order, everything still owed to the
	// server: pending items plus failed ones awaiting retry.
	PendingItems() []domain.QueueItem
	// SnapshotPending returns only the pending items, the set one drain pass
	// attempts. Failed items wait for an explicit retry.
	SnapshotPending() []domain.QueueItem
	// UpdateStatus records an attempt outcome. A pending status carrying an
	// error message is a retryable failure: the retry counter bumps and the
	// attempt time is stamped. A failed status is terminal until retried,
	// keeping its counter.
	UpdateStatus(ctx context.Context, id string, status domain.QueueItemStatus, errorMessage string) error
	Remove(ctx context.Context, id string) error
	// Count is pending plus failed; syncing items are someone's in-flight
	// work, not debt.
	Count() int
	Retry(ctx context.Context, id string) error
	RetryAllFailed(ctx context.Context) (int, error)
	// PruneFailed drops failed items not touched since cutoff.
	PruneFailed(ctx context.Context, cutoff time.Time) (int, error)
}

type service struct {
	log  zerolog.Logger
	repo domain.KVRepo
	bus  EventBus.Bus

	m     sync.Mutex
	items []domain.QueueItem
}

func NewService(ctx context.Context, log logger.Logger, repo domain.KVRepo, bus EventBus.Bus) Service {
	s := &service{
		log:  log.With().Str("module", "queue").Logger(),
		repo: repo,
		bus:  bus,
	}
	s.load(ctx)
	return s
}

// load restores the queue blob. Items caught mid-attempt by a previous
// process death are demoted back to pending before anything else sees them.
func (s *service) load(ctx context.Context) {
	raw, err := s.repo.Get(ctx, domain.QueueKey)
	if err != nil {
		s.log.Error().Err(err).Msg("could not read offline queue, starting empty")
		return
	}
	if raw == nil {
		return
	}

	var items []domain.QueueItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.Error().Err(err).Msg("discarding corrupt offline queue")
		return
	}

	demoted := 0
	for i := range items {
		if items[i].Status == domain.QueueStatusSyncing {
			items[i].Status = domain.QueueStatusPending
			demoted++
		}
	}
	s.items = items

	if demoted > 0 {
		s.log.Info().Int("items", demoted).Msg("demoted interrupted sync items to pending")
		if err := s.persist(ctx, items); err != nil {
			s.log.Error().Err(err).Msg("could not persist demoted queue items")
		}
	}
}

func (s *service) Add(ctx context.Context, itemType domain.QueueItemType, endpoint string, data map[string]json.RawMessage, method string) (*domain.QueueItem, error) {
	if method == "" {
		method = http.MethodPost
	}

	payload := make(map[string]json.RawMessage, len(data)+2)
	for k, v := range data {
		payload[k] = v
	}

	id := jsonString(payload["client_id"])
	if id == "" {
		id = uuid.NewString()
		payload["client_id"] = mustJSON(id)
	}
	if field := itemType.TimestampField(); len(payload[field]) == 0 {
		payload[field] = mustJSON(time.Now().Format(time.RFC3339))
	}

	item := domain.QueueItem{
		ID:        id,
		Type:      itemType,
		Endpoint:  endpoint,
		Method:    method,
		Data:      payload,
		Status:    domain.QueueStatusPending,
		CreatedAt: time.Now(),
	}

	s.m.Lock()
	next := append(append([]domain.QueueItem(nil), s.items...), item)
	if err := s.persist(ctx, next); err != nil {
		s.m.Unlock()
		return nil, errors.Wrap(err, "failed to persist queue item %s", id)
	}
	s.items = next
	count := s.countLocked()
	s.m.Unlock()

	s.log.Debug().Str("id", id).Str("type", string(itemType)).Str("endpoint", endpoint).Msg("queued offline mutation")
	s.bus.Publish(domain.EventQueueUpdated, count)
	return &item, nil
}

func (s *service) PendingItems() []domain.QueueItem {
	return s.filter(func(status domain.QueueItemStatus) bool {
		return status == domain.QueueStatusPending || status == domain.QueueStatusFailed
	})
}

func (s *service) SnapshotPending() []domain.QueueItem {
	return s.filter(func(status domain.QueueItemStatus) bool {
		return status == domain.QueueStatusPending
	})
}

func (s *service) filter(keep func(domain.QueueItemStatus) bool) []domain.QueueItem {
	s.m.Lock()
	defer s.m.Unlock()

	out := make([]domain.QueueItem, 0, len(s.items))
	for _, item := range s.items {
		if keep(item.Status) {
			out = append(out, cloneItem(item))
		}
	}
	return out
}

func (s *service) UpdateStatus(ctx context.Context, id string, status domain.QueueItemStatus, errorMessage string) error {
	now := time.Now()

	s.m.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.m.Unlock()
		return errors.New("queue item %s not found", id)
	}

	next := append([]domain.QueueItem(nil), s.items...)
	item := &next[idx]
	switch {
	case status == domain.QueueStatusSyncing:
		item.LastAttempt = &now
	case status == domain.QueueStatusPending && errorMessage != "":
		item.RetryCount++
		item.LastAttempt = &now
	case status == domain.QueueStatusFailed:
		item.LastAttempt = &now
	}
	item.Status = status
	item.ErrorMessage = errorMessage

	if err := s.persist(ctx, next); err != nil {
		s.m.Unlock()
		return errors.Wrap(err, "failed to persist queue item %s", id)
	}
	s.items = next
	count := s.countLocked()
	s.m.Unlock()

	s.bus.Publish(domain.EventQueueUpdated, count)
	return nil
}

func (s *service) Remove(ctx context.Context, id string) error {
	s.m.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.m.Unlock()
		return nil
	}

	next := append([]domain.QueueItem(nil), s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	if err := s.persist(ctx, next); err != nil {
		s.m.Unlock()
		return errors.Wrap(err, "failed to persist queue after removing %s", id)
	}
	s.items = next
	count := s.countLocked()
	s.m.Unlock()

	s.bus.Publish(domain.EventQueueUpdated, count)
	return nil
}

func (s *service) Count() int {
	s.m.Lock()
	defer s.m.Unlock()
	return s.countLocked()
}

func (s *service) Retry(ctx context.Context, id string) error {
	s.m.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.m.Unlock()
		return errors.New("queue item %s not found", id)
	}
	if s.items[idx].Status != domain.QueueStatusFailed {
		s.m.Unlock()
		return nil
	}

	next := append([]domain.QueueItem(nil), s.items...)
	next[idx].Status = domain.QueueStatusPending
	next[idx].ErrorMessage = ""

	if err := s.persist(ctx, next); err != nil {
		s.m.Unlock()
		return errors.Wrap(err, "failed to persist queue item %s", id)
	}
	s.items = next
	count := s.countLocked()
	s.m.Unlock()

	s.bus.Publish(domain.EventQueueUpdated, count)
	return nil
}

func (s *service) RetryAllFailed(ctx context.Context) (int, error) {
	s.m.Lock()
	next := append([]domain.QueueItem(nil), s.items...)
	touched := 0
	for i := range next {
		if next[i].Status == domain.QueueStatusFailed {
			next[i].Status = domain.QueueStatusPending
			next[i].ErrorMessage = ""
			touched++
		}
	}
	if touched == 0 {
		s.m.Unlock()
		return 0, nil
	}

	if err := s.persist(ctx, next); err != nil {
		s.m.Unlock()
		return 0, errors.Wrap(err, "failed to persist retried queue items")
	}
	s.items = next
	count := s.countLocked()
	s.m.Unlock()

	s.bus.Publish(domain.EventQueueUpdated, count)
	return touched, nil
}

func (s *service) PruneFailed(ctx context.Context, cutoff time.Time) (int, error) {
	s.m.Lock()
	next := make([]domain.QueueItem, 0, len(s.items))
	dropped := 0
	for _, item := range s.items {
		if item.Status == domain.QueueStatusFailed && lastTouched(item).Before(cutoff) {
			dropped++
			continue
		}
		next = append(next, item)
	}
	if dropped == 0 {
		s.m.Unlock()
		return 0, nil
	}

	if err := s.persist(ctx, next); err != nil {
		s.m.Unlock()
		return 0, errors.Wrap(err, "failed to persist pruned queue")
	}
	s.items = next
	count := s.countLocked()
	s.m.Unlock()

	s.log.Info().Int("items", dropped).Msg("pruned stale failed queue items")
	s.bus.Publish(domain.EventQueueUpdated, count)
	return dropped, nil
}

func (s *service) persist(ctx context.Context, items []domain.QueueItem) error {
	if items == nil {
		items = []domain.QueueItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "failed to encode offline queue")
	}
	return s.repo.Set(ctx, domain.QueueKey, raw)
}

func (s *service) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *service) countLocked() int {
	count := 0
	for i := range s.items {
		switch s.items[i].Status {
		case domain.QueueStatusPending, domain.QueueStatusFailed:
			count++
		}
	}
	return count
}

// lastTouched is when the item last saw any activity, for retention math.
func lastTouched(item domain.QueueItem) time.Time {
	if item.LastAttempt != nil {
		return *item.LastAttempt
	}
	return item.CreatedAt
}

func cloneItem(item domain.QueueItem) domain.QueueItem {
	if item.Data != nil {
		data := make(map[string]json.RawMessage, len(item.Data))
		for k, v := range item.Data {
			data[k] = v
		}
		item.Data = data
	}
	if item.LastAttempt != nil {
		at := *item.LastAttempt
		item.LastAttempt = &at
	}
	return item
}

func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func mustJSON(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
