package api

import (
	"context"
	"testing"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_GetSalesAnalytics_OnlinePassthrough(t *testing.T) {
	env := newTestAPI(t, true)
	env.client.onSales = func(q domain.AnalyticsQuery) (*domain.SalesAnalytics, error) {
		assert.Equal(t, "week", q.TimeRange)
		return &domain.SalesAnalytics{TotalRevenue: 9999, TotalSalesCount: 42}, nil
	}

	report, err := env.svc.GetSalesAnalytics(context.Background(), domain.AnalyticsQuery{TimeRange: "week"})

	require.NoError(t, err)
	assert.EqualValues(t, 9999, report.TotalRevenue)
	assert.False(t, report.FromCache)
	assert.Equal(t, 1, env.client.callCount())
}

func TestService_GetSalesAnalytics_ClientErrorSurfaces(t *testing.T) {
	env := newTestAPI(t, true)
	env.client.onSales = func(domain.AnalyticsQuery) (*domain.SalesAnalytics, error) {
		return nil, &domain.APIError{Kind: domain.KindClient, StatusCode: 400, Message: "bad time_range"}
	}

	_, err := env.svc.GetSalesAnalytics(context.Background(), domain.AnalyticsQuery{TimeRange: "decade"})

	require.Error(t, err)
	assert.True(t, domain.IsClientError(err))
}

func TestService_GetSalesAnalytics_OfflineApproximation(t *testing.T) {
	env := newTestAPI(t, false)
	today := time.Now().Format(time.RFC3339)
	old := time.Now().AddDate(0, -2, 0).Format(time.RFC3339)

	seedCollection(t, env, "refills", []domain.Refill{
		{ID: 1, Shop: 1, Cost: 300, PaymentMode: domain.PaymentMpesa, CreatedAt: today},
		{ID: 2, Shop: 1, Cost: 500, PaymentMode: domain.PaymentCash, CreatedAt: old},
	})
	seedCollection(t, env, "sales", []domain.Sale{
		{ID: 1, Shop: 1, Cost: 200, PaymentMode: domain.PaymentCash, SoldAt: today},
	})

	report, err := env.svc.GetSalesAnalytics(context.Background(), domain.AnalyticsQuery{TimeRange: "month"})

	require.NoError(t, err)
	assert.True(t, report.FromCache)
	assert.Equal(t, "month", report.Period)
	assert.EqualValues(t, 500, report.TotalRevenue)
	assert.EqualValues(t, 300, report.RefillRevenue)
	assert.EqualValues(t, 200, report.BottleSalesRevenue)
	assert.Equal(t, 2, report.TotalSalesCount)
	assert.Equal(t, 1, report.RefillCount)
	assert.Equal(t, 1, report.BottleSalesCount)
	assert.EqualValues(t, 300, report.SalesByPaymentMode["MPESA"])
	assert.EqualValues(t, 200, report.SalesByPaymentMode["CASH"])

	require.Len(t, report.DailySales, 1)
	assert.Equal(t, time.Now().Format("2006-01-02"), report.DailySales[0].Date)
	assert.Equal(t, 2, report.DailySales[0].Count)
	assert.EqualValues(t, 500, report.DailySales[0].Revenue)

	assert.Zero(t, env.client.callCount())
}

func TestService_GetSalesAnalytics_ShopFilter(t *testing.T) {
	env := newTestAPI(t, false)
	today := time.Now().Format(time.RFC3339)
	seedCollection(t, env, "refills", []domain.Refill{
		{ID: 1, Shop: 1, Cost: 300, CreatedAt: today},
		{ID: 2, Shop: 2, Cost: 700, CreatedAt: today},
	})

	report, err := env.svc.GetSalesAnalytics(context.Background(), domain.AnalyticsQuery{TimeRange: "month", ShopID: 1})

	require.NoError(t, err)
	assert.EqualValues(t, 300, report.TotalRevenue)
	assert.Equal(t, 1, report.RefillCount)
}

func TestService_GetCustomerAnalytics_Offline(t *testing.T) {
	env := newTestAPI(t, false)
	today := time.Now().Format(time.RFC3339)

	seedCollection(t, env, "customers", []domain.Customer{
		{ID: 1, ActivityStatus: "Active", CreditBalance: 100, RefillCount: 10, Loyalty: &domain.Loyalty{RefillsUntilFree: 0}},
		{ID: 2, ActivityStatus: "Inactive", CreditBalance: 0, RefillCount: 2, DateRegistered: today, Loyalty: &domain.Loyalty{RefillsUntilFree: 3}},
	})
	seedCollection(t, env, "refills", []domain.Refill{
		{ID: 1, IsFree: true, CreatedAt: today},
	})
	seedCollection(t, env, "credits", []domain.Credit{
		{ID: 1, Customer: 1, MoneyPaid: 50, PaymentDate: today},
	})

	report, err := env.svc.GetCustomerAnalytics(context.Background(), domain.AnalyticsQuery{TimeRange: "month"})

	require.NoError(t, err)
	assert.True(t, report.FromCache)
	assert.Equal(t, 2, report.TotalCustomers)
	assert.Equal(t, 1, report.ActiveCustomers)
	assert.Equal(t, 1, report.NewCustomers)
	assert.EqualValues(t, 100, report.CreditsOutstanding)
	assert.Equal(t, 1, report.LoyaltyRedemptions)
	assert.Equal(t, map[string]int{"active": 1, "inactive": 1}, report.CustomerActivity)

	require.NotNil(t, report.LoyaltyMetrics)
	assert.Equal(t, 1, report.LoyaltyMetrics.EligibleForFreeRefill)
	assert.InDelta(t, 6.0, report.LoyaltyMetrics.AverageRefillsPerCustomer, 0.001)

	require.NotNil(t, report.CreditAnalysis)
	assert.EqualValues(t, 50, report.CreditAnalysis.TotalRepaid)
	assert.EqualValues(t, 150, report.CreditAnalysis.TotalCreditGiven)
	assert.Equal(t, 1, report.CreditAnalysis.CreditCustomers)
	assert.EqualValues(t, 100, report.CreditAnalysis.AvgCreditPerCustomer)
}

func TestService_GetInventoryAnalytics_Offline(t *testing.T) {
	env := newTestAPI(t, false)
	today := time.Now().Format(time.RFC3339)
	old := time.Now().AddDate(0, -2, 0).Format(time.RFC3339)

	seedCollection(t, env, "stock-items", []domain.StockItem{
		{ID: 1, ItemName: "Bottle caps", Quantity: 2, LowStockThreshold: 5},
		{ID: 2, ItemName: "20L bottles", Quantity: 50, LowStockThreshold: 5},
	})
	seedCollection(t, env, "stock-logs", []domain.StockLog{
		{ID: 1, ItemName: "Bottle caps", QuantityChange: 10, LogDate: today},
		{ID: 2, ItemName: "Bottle caps", QuantityChange: -4, LogDate: today},
		{ID: 3, ItemName: "Seals", QuantityChange: 3, LogDate: old},
	})

	report, err := env.svc.GetInventoryAnalytics(context.Background(), domain.AnalyticsQuery{TimeRange: "month"})

	require.NoError(t, err)
	assert.True(t, report.FromCache)
	assert.Equal(t, 2, report.TotalStockItems)
	assert.Equal(t, 1, report.LowStockItems)
	require.Len(t, report.StockItems, 2)

	require.Len(t, report.StockMovements, 1, "movements outside the window stay out")
	m := report.StockMovements[0]
	assert.Equal(t, "Bottle caps", m.Item)
	assert.Equal(t, 10, m.Added)
	assert.Equal(t, 4, m.Removed)
	assert.Equal(t, 6, m.Net)
}

func TestService_GetFinancialAnalytics_Offline(t *testing.T) {
	env := newTestAPI(t, false)
	today := time.Now().Format(time.RFC3339)

	seedCollection(t, env, "refills", []domain.Refill{{ID: 1, Cost: 300, CreatedAt: today}})
	seedCollection(t, env, "sales", []domain.Sale{{ID: 1, Cost: 200, SoldAt: today}})
	seedCollection(t, env, "expenses", []domain.Expense{
		{ID: 1, Description: "Generator fuel", Cost: 120, CreatedAt: today},
	})

	report, err := env.svc.GetFinancialAnalytics(context.Background(), domain.AnalyticsQuery{TimeRange: "month"})

	require.NoError(t, err)
	assert.True(t, report.FromCache)
	assert.EqualValues(t, 500, report.TotalRevenue)
	assert.EqualValues(t, 120, report.TotalExpenses)
	assert.EqualValues(t, 380, report.NetProfit)
	assert.InDelta(t, 76.0, report.ProfitMargin, 0.001)

	require.NotNil(t, report.CashFlow)
	assert.EqualValues(t, 500, report.CashFlow.Inflow)
	assert.EqualValues(t, 120, report.CashFlow.Outflow)
	assert.EqualValues(t, 380, report.CashFlow.Net)

	require.Len(t, report.MonthlyFinancials, 1)
	assert.Equal(t, time.Now().Format("2006-01"), report.MonthlyFinancials[0].Month)
	assert.EqualValues(t, 380, report.MonthlyFinancials[0].Profit)

	require.Len(t, report.RecentExpenses, 1)
	assert.Equal(t, "Generator fuel", report.RecentExpenses[0].Description)
}

func TestService_GetDashboardStats(t *testing.T) {
	ctx := context.Background()
	env := newTestAPI(t, false)
	today := time.Now().Format(time.RFC3339)
	old := time.Now().AddDate(0, 0, -3).Format(time.RFC3339)

	seedCollection(t, env, "customers", []domain.Customer{
		{ID: 1, CreditBalance: 100},
		{ID: 2, CreditBalance: 50},
	})
	seedCollection(t, env, "refills", []domain.Refill{{ID: 1, Cost: 300, CreatedAt: today}})
	seedCollection(t, env, "sales", []domain.Sale{
		{ID: 1, Cost: 200, SoldAt: today},
		{ID: 2, Cost: 999, SoldAt: old},
	})
	seedCollection(t, env, "stock-items", []domain.StockItem{
		{ID: 1, Quantity: 2, LowStockThreshold: 5},
		{ID: 2, Quantity: 40, LowStockThreshold: 5},
	})
	_, err := env.svc.QueueMeterReading(ctx, domain.MeterReading{Shop: 1, Value: 100})
	require.NoError(t, err)

	stats, err := env.svc.GetDashboardStats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCustomers)
	assert.Equal(t, 2, stats.TodaySalesCount)
	assert.EqualValues(t, 500, stats.TodayRevenue)
	assert.Equal(t, 1, stats.LowStockCount)
	assert.EqualValues(t, 150, stats.OutstandingCredits)
	assert.Equal(t, 1, stats.PendingSyncCount)
	assert.NotEmpty(t, stats.GeneratedAt)

	raw, ok := env.store.Get(ctx, "dashboard-stats")
	require.True(t, ok)
	require.Len(t, raw, 1)
}

func TestAnalyticsWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

	start, end := analyticsWindow(domain.AnalyticsQuery{TimeRange: "today"}, now)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, now, end)

	start, _ = analyticsWindow(domain.AnalyticsQuery{TimeRange: "week"}, now)
	assert.Equal(t, now.AddDate(0, 0, -7), start)

	start, end = analyticsWindow(domain.AnalyticsQuery{StartDate: "2025-01-01", EndDate: "2025-01-31"}, now)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 31, end.Day())
	assert.Equal(t, time.January, end.Month())

	start, _ = analyticsWindow(domain.AnalyticsQuery{}, now)
	assert.True(t, start.IsZero())
}

func TestParseRecordTime(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"2025-06-01T10:00:00Z", true},
		{"2025-06-01T10:00:00.123456+03:00", true},
		{"2025-06-01T10:00:00", true},
		{"2025-06-01", true},
		{"yesterday", false},
		{"", false},
	}
	for _, tc := range cases {
		_, ok := parseRecordTime(tc.value)
		assert.Equal(t, tc.ok, ok, tc.value)
	}
}
