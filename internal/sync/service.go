package sync

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/queue"

	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
)

// Requester issues one backend call and classifies the outcome. Satisfied by
// the rest client.
type Requester interface {
	Do(ctx context.Context, method string, endpoint string, body any) ([]byte, error)
}

// Connectivity is the monitor's last known network state.
type Connectivity interface {
	Connected() bool
}

// FileReader loads attachment bytes referenced by queued payloads.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// OSFileReader reads attachments from the local filesystem.
type OSFileReader struct{}

func (OSFileReader) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Service drains the offline queue against the backend. At most one pass is
// active per process; passes walk the pending snapshot strictly in FIFO
// order because later mutations may reference earlier ones.
type Service interface {
	Start()
	Stop()
	// Notify requests a drain pass. Wake-ups coalesce: if a pass is already
	// owed, this one folds into it.
	Notify()
	// ProcessQueue runs one drain pass synchronously and reports what
	// happened. Skipped means another pass was active or the network is down.
	ProcessQueue(ctx context.Context) *domain.SyncReport
}

func NewService(log logger.Logger, bus EventBus.Bus, monitor Connectivity, q queue.Service, store *cache.Store, client Requester, files FileReader) Service {
	if files == nil {
		files = OSFileReader{}
	}
	return &service{
		log:     log.With().Str("module", "sync").Logger(),
		bus:     bus,
		monitor: monitor,
		queue:   q,
		store:   store,
		client:  client,
		files:   files,
		wake:    make(chan struct{}, 1),
	}
}

type service struct {
	log     zerolog.Logger
	bus     EventBus.Bus
	monitor Connectivity
	queue   queue.Service
	store   *cache.Store
	client  Requester
	files   FileReader

	syncing atomic.Bool
	wake    chan struct{}

	m       sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func (s *service) Start() {
	s.m.Lock()
	defer s.m.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go s.run()
	s.log.Debug().Msg("sync worker started")
}

func (s *service) Stop() {
	s.m.Lock()
	defer s.m.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.cancel()
	s.wg.Wait()
	s.log.Debug().Msg("sync worker stopped")
}

func (s *service) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			s.ProcessQueue(s.ctx)
		}
	}
}

func (s *service) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *service) ProcessQueue(ctx context.Context) *domain.SyncReport {
	if !s.syncing.CompareAndSwap(false, true) {
		s.log.Debug().Msg("sync pass already active, skipping")
		return &domain.SyncReport{Skipped: true}
	}
	defer s.syncing.Store(false)

	if !s.monitor.Connected() {
		s.log.Debug().Msg("offline, skipping sync pass")
		return &domain.SyncReport{Skipped: true}
	}

	items := s.queue.SnapshotPending()
	report := &domain.SyncReport{}
	for _, item := range items {
		if ctx.Err() != nil {
			s.log.Warn().Msg("sync pass interrupted, remaining items stay pending")
			break
		}
		s.processItem(ctx, item, report)
	}

	if len(items) > 0 {
		s.log.Info().Int("synced", report.Synced).Int("failed", report.Failed).Msg("sync pass complete")
	}
	s.bus.Publish(domain.EventSyncCompleted, report)
	return report
}

func (s *service) processItem(ctx context.Context, item domain.QueueItem, report *domain.SyncReport) {
	if err := s.queue.UpdateStatus(ctx, item.ID, domain.QueueStatusSyncing, ""); err != nil {
		s.log.Error().Err(err).Str("id", item.ID).Msg("could not mark queue item syncing")
		return
	}

	payload := s.preparePayload(item)

	data, err := s.client.Do(ctx, item.Method, item.Endpoint, payload)
	switch {
	case err == nil:
		s.confirm(ctx, item, data)
		report.Synced++
	case domain.IsConflict(err):
		// the server has seen this client_id before; the write is already in
		s.log.Debug().Str("id", item.ID).Msg("duplicate submission, treating as synced")
		s.discard(ctx, item)
		report.Synced++
	case domain.IsUnreachable(err):
		s.log.Warn().Err(err).Str("id", item.ID).Msg("backend unreachable, item stays queued")
		if uerr := s.queue.UpdateStatus(ctx, item.ID, domain.QueueStatusPending, err.Error()); uerr != nil {
			s.log.Error().Err(uerr).Str("id", item.ID).Msg("could not requeue item")
		}
	default:
		// client rejections and dead sessions do not fix themselves on retry
		s.log.Warn().Err(err).Str("id", item.ID).Str("endpoint", item.Endpoint).Msg("server rejected queued mutation")
		if uerr := s.queue.UpdateStatus(ctx, item.ID, domain.QueueStatusFailed, err.Error()); uerr != nil {
			s.log.Error().Err(uerr).Str("id", item.ID).Msg("could not mark item failed")
		}
		report.Failed++
		if domain.IsSessionExpired(err) {
			s.bus.Publish(domain.EventSessionExpired)
		}
	}
}

// confirm lands a server acknowledgement. When the response carries the
// created record the overlay entry becomes that record; otherwise the
// overlay is dropped and the record arrives with the next refresh.
func (s *service) confirm(ctx context.Context, item domain.QueueItem, server []byte) {
	if err := s.queue.Remove(ctx, item.ID); err != nil {
		s.log.Error().Err(err).Str("id", item.ID).Msg("could not remove synced queue item")
	}

	collection := item.Type.Collection()
	trimmed := bytes.TrimSpace(server)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		if err := s.store.ConfirmPending(ctx, collection, item.ID, trimmed); err != nil {
			s.log.Error().Err(err).Str("id", item.ID).Msg("could not confirm pending record")
		}
		return
	}
	if err := s.store.RemovePending(ctx, collection, item.ID); err != nil {
		s.log.Error().Err(err).Str("id", item.ID).Msg("could not drop pending record")
	}
}

func (s *service) discard(ctx context.Context, item domain.QueueItem) {
	if err := s.queue.Remove(ctx, item.ID); err != nil {
		s.log.Error().Err(err).Str("id", item.ID).Msg("could not remove queue item")
	}
	if err := s.store.RemovePending(ctx, item.Type.Collection(), item.ID); err != nil {
		s.log.Error().Err(err).Str("id", item.ID).Msg("could not drop pending record")
	}
}

// attachmentFields maps the types whose payloads may reference a local file
// to the source URI field and the base64 field the backend expects.
var attachmentFields = map[domain.QueueItemType][2]string{
	domain.QueueTypeExpense:      {"receipt_image", "receipt_base64"},
	domain.QueueTypeMeterReading: {"meter_photo", "meter_photo_base64"},
}

// preparePayload inlines a local attachment as a base64 data URL. A file
// that cannot be read drops the field; the mutation still goes out.
func (s *service) preparePayload(item domain.QueueItem) map[string]json.RawMessage {
	fields, ok := attachmentFields[item.Type]
	if !ok {
		return item.Data
	}
	raw, ok := item.Data[fields[0]]
	if !ok {
		return item.Data
	}

	// the snapshot owns this map, mutating it is safe
	payload := item.Data
	delete(payload, fields[0])

	var uri string
	if err := json.Unmarshal(raw, &uri); err != nil || uri == "" {
		return payload
	}

	content, err := s.files.ReadFile(strings.TrimPrefix(uri, "file://"))
	if err != nil {
		s.log.Warn().Err(err).Str("id", item.ID).Str("file", uri).Msg("attachment unreadable, sending without it")
		return payload
	}

	encoded, _ := json.Marshal(dataURL(uri, content))
	payload[fields[1]] = encoded
	return payload
}

func dataURL(name string, content []byte) string {
	media := "image/jpeg"
	if strings.EqualFold(filepath.Ext(name), ".png") {
		media = "image/png"
	}
	return "data:" + media + ";base64," + base64.StdEncoding.EncodeToString(content)
}
