package api

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/queue"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	m    sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.m.Lock()
	defer m.m.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.m.Lock()
	defer m.m.Unlock()
	keys := []string{}
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func unreachableErr() error {
	return &domain.APIError{Kind: domain.KindUnreachable, Message: "dial tcp: connection refused"}
}

type pageCall struct {
	Collection string
	Page       int
}

// fakeClient satisfies rest.Client. Every method is unreachable unless a
// hook is installed, and every call is counted so tests can assert the
// network was never involved.
type fakeClient struct {
	m     sync.Mutex
	calls []string
	pages []pageCall

	onPage         func(collection string, page int) (*domain.PageEnvelope, error)
	onMe           func() (*domain.UserProfile, error)
	onLowStock     func() ([]json.RawMessage, error)
	onCheckLoyalty func(customerID, packageID int64, quantity int) (*domain.LoyaltyCheck, error)
	onSales        func(q domain.AnalyticsQuery) (*domain.SalesAnalytics, error)
	onCustomers    func(q domain.AnalyticsQuery) (*domain.CustomerAnalytics, error)
	onInventory    func(q domain.AnalyticsQuery) (*domain.InventoryAnalytics, error)
	onFinancial    func(q domain.AnalyticsQuery) (*domain.FinancialAnalytics, error)
}

func (f *fakeClient) record(name string) {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeClient) callCount() int {
	f.m.Lock()
	defer f.m.Unlock()
	return len(f.calls)
}

func (f *fakeClient) pageCalls() []pageCall {
	f.m.Lock()
	defer f.m.Unlock()
	return append([]pageCall(nil), f.pages...)
}

func (f *fakeClient) Do(_ context.Context, _ string, _ string, _ any) ([]byte, error) {
	f.record("do")
	return nil, unreachableErr()
}

func (f *fakeClient) Login(_ context.Context, _ string, _ string) (*domain.TokenPair, error) {
	f.record("login")
	return nil, unreachableErr()
}

func (f *fakeClient) Me(_ context.Context) (*domain.UserProfile, error) {
	f.record("me")
	if f.onMe == nil {
		return nil, unreachableErr()
	}
	return f.onMe()
}

func (f *fakeClient) Page(_ context.Context, collection string, page int) (*domain.PageEnvelope, error) {
	f.record("page")
	f.m.Lock()
	f.pages = append(f.pages, pageCall{Collection: collection, Page: page})
	f.m.Unlock()
	if f.onPage == nil {
		return nil, unreachableErr()
	}
	return f.onPage(collection, page)
}

func (f *fakeClient) CustomersExport(_ context.Context) (*domain.ExportEnvelope, error) {
	f.record("customers_export")
	return nil, unreachableErr()
}

func (f *fakeClient) PackagesExport(_ context.Context) (*domain.ExportEnvelope, error) {
	f.record("packages_export")
	return nil, unreachableErr()
}

func (f *fakeClient) LowStock(_ context.Context) ([]json.RawMessage, error) {
	f.record("low_stock")
	if f.onLowStock == nil {
		return nil, unreachableErr()
	}
	return f.onLowStock()
}

func (f *fakeClient) CheckLoyalty(_ context.Context, customerID int64, packageID int64, quantity int) (*domain.LoyaltyCheck, error) {
	f.record("check_loyalty")
	if f.onCheckLoyalty == nil {
		return nil, unreachableErr()
	}
	return f.onCheckLoyalty(customerID, packageID, quantity)
}

func (f *fakeClient) SalesAnalytics(_ context.Context, q domain.AnalyticsQuery) (*domain.SalesAnalytics, error) {
	f.record("sales_analytics")
	if f.onSales == nil {
		return nil, unreachableErr()
	}
	return f.onSales(q)
}

func (f *fakeClient) CustomerAnalytics(_ context.Context, q domain.AnalyticsQuery) (*domain.CustomerAnalytics, error) {
	f.record("customer_analytics")
	if f.onCustomers == nil {
		return nil, unreachableErr()
	}
	return f.onCustomers(q)
}

func (f *fakeClient) InventoryAnalytics(_ context.Context, q domain.AnalyticsQuery) (*domain.InventoryAnalytics, error) {
	f.record("inventory_analytics")
	if f.onInventory == nil {
		return nil, unreachableErr()
	}
	return f.onInventory(q)
}

func (f *fakeClient) FinancialAnalytics(_ context.Context, q domain.AnalyticsQuery) (*domain.FinancialAnalytics, error) {
	f.record("financial_analytics")
	if f.onFinancial == nil {
		return nil, unreachableErr()
	}
	return f.onFinancial(q)
}

func (f *fakeClient) ChangePassword(_ context.Context, _ string, _ string) error {
	f.record("change_password")
	return unreachableErr()
}

func (f *fakeClient) RequestPasswordReset(_ context.Context, _ string) error {
	f.record("request_password_reset")
	return unreachableErr()
}

func (f *fakeClient) VerifyResetCode(_ context.Context, _ string, _ string) (string, error) {
	f.record("verify_reset_code")
	return "", unreachableErr()
}

func (f *fakeClient) ResetPassword(_ context.Context, _ string, _ string, _ string) error {
	f.record("reset_password")
	return unreachableErr()
}

type fakeMonitor struct {
	connected bool
}

func (f *fakeMonitor) Connected() bool { return f.connected }

type fakeEngine struct {
	m      sync.Mutex
	passes int
	report *domain.SyncReport
}

func (f *fakeEngine) ProcessQueue(_ context.Context) *domain.SyncReport {
	f.m.Lock()
	defer f.m.Unlock()
	f.passes++
	if f.report != nil {
		return f.report
	}
	return &domain.SyncReport{}
}

type eventCounter struct {
	m     sync.Mutex
	count int
}

func (c *eventCounter) bump() {
	c.m.Lock()
	defer c.m.Unlock()
	c.count++
}

func (c *eventCounter) seen() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.count
}

type apiEnv struct {
	svc     Service
	store   *cache.Store
	queue   queue.Service
	client  *fakeClient
	monitor *fakeMonitor
	engine  *fakeEngine
	bus     EventBus.Bus
	expired *eventCounter
}

func newTestAPI(t *testing.T, online bool) *apiEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.Mock()
	bus := EventBus.New()
	kv := newMemKV()

	cfg := &domain.Config{Cache: domain.CacheConfig{TTLMinutes: 30}}
	store := cache.NewStore(ctx, log, kv, cfg)
	q := queue.NewService(ctx, log, kv, bus)

	client := &fakeClient{}
	monitor := &fakeMonitor{connected: online}
	engine := &fakeEngine{}

	expired := &eventCounter{}
	require.NoError(t, bus.Subscribe(domain.EventSessionExpired, expired.bump))

	return &apiEnv{
		svc:     NewService(log, bus, store, q, client, monitor, engine),
		store:   store,
		queue:   q,
		client:  client,
		monitor: monitor,
		engine:  engine,
		bus:     bus,
		expired: expired,
	}
}

func seedCollection[T any](t *testing.T, env *apiEnv, name string, records []T) {
	t.Helper()
	col := cache.NewCollection[T](env.store, name)
	require.NoError(t, col.Set(context.Background(), records))
}

func cachedCollection[T any](t *testing.T, env *apiEnv, name string) []T {
	t.Helper()
	col := cache.NewCollection[T](env.store, name)
	records, _ := col.Get(context.Background())
	return records
}

func awaitFresh[T any](t *testing.T, res ReadResult[T]) RefreshResult[T] {
	t.Helper()
	select {
	case r := <-res.Fresh:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("refresh future did not resolve")
		return RefreshResult[T]{}
	}
}

func TestService_TriggerSync(t *testing.T) {
	env := newTestAPI(t, true)
	env.engine.report = &domain.SyncReport{Synced: 3, Failed: 1}

	report := env.svc.TriggerSync(context.Background())

	require.NotNil(t, report)
	assert.Equal(t, 3, report.Synced)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, env.engine.passes)
}

func TestService_LastSyncTimes(t *testing.T) {
	ctx := context.Background()
	env := newTestAPI(t, false)

	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, env.store.SetLastSync(ctx, "refills", at))

	times := env.svc.LastSyncTimes(ctx)
	require.Contains(t, times, "refills")
	assert.True(t, times["refills"].Equal(at))
}

func TestService_RetryPassthroughs(t *testing.T) {
	ctx := context.Background()
	env := newTestAPI(t, false)

	item, err := env.queue.Add(ctx, domain.QueueTypeSale, "sales/", map[string]json.RawMessage{
		"quantity": json.RawMessage(`2`),
	}, "")
	require.NoError(t, err)
	require.NoError(t, env.queue.UpdateStatus(ctx, item.ID, domain.QueueStatusFailed, "validation error"))

	require.NoError(t, env.svc.RetryQueueItem(ctx, item.ID))
	items := env.svc.PendingItems()
	require.Len(t, items, 1)
	assert.Equal(t, domain.QueueStatusPending, items[0].Status)

	require.NoError(t, env.queue.UpdateStatus(ctx, item.ID, domain.QueueStatusFailed, "validation error"))
	n, err := env.svc.RetryAllFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, env.svc.PendingCount())
}
