package apitest

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/rest"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(value))
	copy(out, value)
	m.data[key] = out
	return nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memKV) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// newBackendClient logs the real REST client into a fresh fake backend.
func newBackendClient(t *testing.T) (*Server, rest.Client, token.Service) {
	t.Helper()
	srv := NewServer()
	t.Cleanup(srv.Close)

	log := logger.Mock()
	tokens := token.NewService(log, newMemKV(), srv.Config())
	client := rest.NewClient(log, srv.Config(), tokens)

	pair, err := client.Login(context.Background(), "brian", "hunter2")
	require.NoError(t, err)
	require.NoError(t, tokens.Save(context.Background(), pair.Access, pair.Refresh))
	return srv, client, tokens
}

func TestServer_LoginAndProfile(t *testing.T) {
	_, client, tokens := newBackendClient(t)

	assert.Equal(t, "access-1", tokens.Access())
	assert.Equal(t, "refresh-1", tokens.Refresh())

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "brian", me.Username)
}

func TestServer_RejectsBadCredentials(t *testing.T) {
	srv := NewServer()
	t.Cleanup(srv.Close)
	client := rest.NewClient(logger.Mock(), srv.Config(), token.NewService(logger.Mock(), newMemKV(), srv.Config()))

	_, err := client.Login(context.Background(), "brian", "wrong")
	require.Error(t, err)
	assert.True(t, domain.IsClientError(err))
}

func TestServer_RefreshAfterExpiredAccess(t *testing.T) {
	srv, client, tokens := newBackendClient(t)

	srv.ExpireAccess()

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "brian", me.Username)
	// the client swapped in the rotated token behind the scenes
	assert.Equal(t, srv.AccessToken(), tokens.Access())
}

func TestServer_RevokedSessionSurfacesAsExpired(t *testing.T) {
	srv, client, _ := newBackendClient(t)

	srv.RevokeSession()

	_, err := client.Me(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsSessionExpired(err))
}

func TestServer_Pagination(t *testing.T) {
	srv, client, _ := newBackendClient(t)
	srv.SetPageSize(2)
	srv.Seed("refills",
		map[string]any{"id": 1},
		map[string]any{"id": 2},
		map[string]any{"id": 3},
	)

	first, err := client.Page(context.Background(), "refills", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Count)
	assert.Len(t, first.Results, 2)
	assert.NotEmpty(t, first.Next)

	second, err := client.Page(context.Background(), "refills", 2)
	require.NoError(t, err)
	assert.Len(t, second.Results, 1)
	assert.Empty(t, second.Next)
	assert.NotEmpty(t, second.Previous)
}

func TestServer_CreateIsIdempotent(t *testing.T) {
	srv, client, _ := newBackendClient(t)
	ctx := context.Background()

	body := map[string]any{"client_id": "7b0d4a6e", "customer": 3, "quantity": 2}
	_, err := client.Do(ctx, http.MethodPost, "refills/", body)
	require.NoError(t, err)

	// replaying the same client_id must not create a second record
	_, err = client.Do(ctx, http.MethodPost, "refills/", body)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Len(t, srv.Created("refills"), 1)
}

func TestServer_ExportsAndLowStock(t *testing.T) {
	srv, client, _ := newBackendClient(t)
	srv.Seed("customers", map[string]any{"id": 1, "name": "Atieno"}, map[string]any{"id": 2, "name": "Baraka"})
	srv.Seed("low-stock", map[string]any{"id": 9, "name": "Bottle tops", "low_stock": true})

	env, err := client.CustomersExport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, env.Count)
	assert.Len(t, env.Results, 2)

	low, err := client.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Contains(t, string(low[0]), "Bottle tops")
}

func TestServer_SendSMS(t *testing.T) {
	srv, client, _ := newBackendClient(t)

	_, err := client.Do(context.Background(), http.MethodPost, "customers/7/send_sms/", map[string]any{
		"message": "Maji yamefika leo",
	})
	require.NoError(t, err)

	sent := srv.SMSSent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Maji yamefika leo", sent[0]["message"])
	assert.Equal(t, "7", sent[0]["customer_path_id"])
}

func TestServer_TransientFailure(t *testing.T) {
	srv, client, _ := newBackendClient(t)
	srv.Seed("sales", map[string]any{"id": 1})
	srv.FailNext(http.MethodGet, "/sales/", 1)

	_, err := client.Page(context.Background(), "sales", 1)
	require.Error(t, err)
	assert.True(t, domain.IsUnreachable(err))

	env, err := client.Page(context.Background(), "sales", 1)
	require.NoError(t, err)
	assert.Len(t, env.Results, 1)
}

func TestServer_LoyaltyCheck(t *testing.T) {
	srv, client, _ := newBackendClient(t)
	srv.SetLoyalty(&domain.LoyaltyCheck{FreeQuantity: 1, PaidQuantity: 2, TotalCost: 200, RefillsUntilNextFree: 3})

	check, err := client.CheckLoyalty(context.Background(), 3, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, check.FreeQuantity)
	assert.Equal(t, 2, check.PaidQuantity)
	assert.Equal(t, 3, check.RefillsUntilNextFree)
	assert.False(t, check.FromCache)
}

func TestServer_Analytics(t *testing.T) {
	srv, client, _ := newBackendClient(t)
	srv.SetAnalytics("sales", map[string]any{
		"total_revenue": 1500,
		"refill_count":  12,
	})

	report, err := client.SalesAnalytics(context.Background(), domain.AnalyticsQuery{TimeRange: "month"})
	require.NoError(t, err)
	assert.Equal(t, 12, report.RefillCount)

	requests := srv.Requests()
	require.NotEmpty(t, requests)
	assert.Contains(t, requests[len(requests)-1], "GET /analytics/sales/")
}
