package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
)

// The analytics endpoints are the one read family that prefers the network:
// the backend aggregates over the full dataset while the cache only holds
// recent pages. When the backend cannot answer, the reports below are
// approximated from cached records and flagged with FromCache so the UI can
// say so.

func (s *service) GetSalesAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.SalesAnalytics, error) {
	if s.monitor.Connected() {
		report, err := s.client.SalesAnalytics(ctx, q)
		switch {
		case err == nil:
			return report, nil
		case domain.IsUnreachable(err):
		case domain.IsSessionExpired(err):
			s.bus.Publish(domain.EventSessionExpired)
			return nil, err
		default:
			return nil, err
		}
	}
	return s.salesAnalyticsFromCache(ctx, q), nil
}

func (s *service) GetCustomerAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.CustomerAnalytics, error) {
	if s.monitor.Connected() {
		report, err := s.client.CustomerAnalytics(ctx, q)
		switch {
		case err == nil:
			return report, nil
		case domain.IsUnreachable(err):
		case domain.IsSessionExpired(err):
			s.bus.Publish(domain.EventSessionExpired)
			return nil, err
		default:
			return nil, err
		}
	}
	return s.customerAnalyticsFromCache(ctx, q), nil
}

func (s *service) GetInventoryAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.InventoryAnalytics, error) {
	if s.monitor.Connected() {
		report, err := s.client.InventoryAnalytics(ctx, q)
		switch {
		case err == nil:
			return report, nil
		case domain.IsUnreachable(err):
		case domain.IsSessionExpired(err):
			s.bus.Publish(domain.EventSessionExpired)
			return nil, err
		default:
			return nil, err
		}
	}
	return s.inventoryAnalyticsFromCache(ctx, q), nil
}

func (s *service) GetFinancialAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.FinancialAnalytics, error) {
	if s.monitor.Connected() {
		report, err := s.client.FinancialAnalytics(ctx, q)
		switch {
		case err == nil:
			return report, nil
		case domain.IsUnreachable(err):
		case domain.IsSessionExpired(err):
			s.bus.Publish(domain.EventSessionExpired)
			return nil, err
		default:
			return nil, err
		}
	}
	return s.financialAnalyticsFromCache(ctx, q), nil
}

func (s *service) salesAnalyticsFromCache(ctx context.Context, q domain.AnalyticsQuery) *domain.SalesAnalytics {
	start, end := analyticsWindow(q, time.Now())
	refills, _ := s.refills.Get(ctx)
	sales, _ := s.sales.Get(ctx)

	report := &domain.SalesAnalytics{
		Period:             q.TimeRange,
		SalesByPaymentMode: map[string]domain.Money{},
		FromCache:          true,
	}
	daily := map[string]*domain.DailySale{}

	for _, r := range refills {
		if !inWindow(r.CreatedAt, start, end) || !shopMatches(q.ShopID, r.Shop, r.ShopDetails) {
			continue
		}
		report.RefillRevenue += r.Cost
		report.RefillCount++
		if r.PaymentMode != "" {
			report.SalesByPaymentMode[string(r.PaymentMode)] += r.Cost
		}
		bumpDaily(daily, r.CreatedAt, r.Cost)
	}
	for _, sale := range sales {
		if !inWindow(sale.SoldAt, start, end) || !shopMatches(q.ShopID, sale.Shop, sale.ShopDetails) {
			continue
		}
		report.BottleSalesRevenue += sale.Cost
		report.BottleSalesCount++
		if sale.PaymentMode != "" {
			report.SalesByPaymentMode[string(sale.PaymentMode)] += sale.Cost
		}
		bumpDaily(daily, sale.SoldAt, sale.Cost)
	}

	report.TotalRevenue = report.RefillRevenue + report.BottleSalesRevenue
	report.TotalSalesCount = report.RefillCount + report.BottleSalesCount
	report.DailySales = sortedDaily(daily)
	return report
}

func (s *service) customerAnalyticsFromCache(ctx context.Context, q domain.AnalyticsQuery) *domain.CustomerAnalytics {
	start, end := analyticsWindow(q, time.Now())
	customers, _ := s.customers.Get(ctx)
	refills, _ := s.refills.Get(ctx)
	credits, _ := s.credits.Get(ctx)

	report := &domain.CustomerAnalytics{
		CustomerActivity: map[string]int{},
		FromCache:        true,
	}
	loyalty := &domain.LoyaltyMetrics{}
	creditAnalysis := &domain.CreditAnalysis{}
	totalRefills := 0

	for _, c := range customers {
		if !shopMatches(q.ShopID, c.Shop, c.ShopDetails) {
			continue
		}
		report.TotalCustomers++
		totalRefills += c.RefillCount
		if strings.EqualFold(c.ActivityStatus, "active") {
			report.ActiveCustomers++
		}
		if c.ActivityStatus != "" {
			report.CustomerActivity[strings.ToLower(c.ActivityStatus)]++
		}
		if inWindow(c.DateRegistered, start, end) {
			report.NewCustomers++
		}
		report.CreditsOutstanding += c.CreditBalance
		if c.CreditBalance > 0 {
			creditAnalysis.CreditCustomers++
		}
		if c.Loyalty != nil && c.Loyalty.RefillsUntilFree == 0 {
			loyalty.EligibleForFreeRefill++
		}
	}

	for _, r := range refills {
		if !inWindow(r.CreatedAt, start, end) || !shopMatches(q.ShopID, r.Shop, r.ShopDetails) {
			continue
		}
		if r.IsFree || r.FreeQuantity > 0 {
			report.LoyaltyRedemptions++
		}
	}
	loyalty.RedeemedThisMonth = report.LoyaltyRedemptions

	for _, c := range credits {
		if !inWindow(c.PaymentDate, start, end) || !shopMatches(q.ShopID, c.Shop, c.ShopDetails) {
			continue
		}
		creditAnalysis.TotalRepaid += c.MoneyPaid
	}
	creditAnalysis.TotalCreditGiven = report.CreditsOutstanding + creditAnalysis.TotalRepaid
	if creditAnalysis.CreditCustomers > 0 {
		creditAnalysis.AvgCreditPerCustomer = report.CreditsOutstanding / domain.Money(creditAnalysis.CreditCustomers)
	}
	if report.TotalCustomers > 0 {
		loyalty.AverageRefillsPerCustomer = float64(totalRefills) / float64(report.TotalCustomers)
	}

	report.LoyaltyMetrics = loyalty
	report.CreditAnalysis = creditAnalysis
	return report
}

func (s *service) inventoryAnalyticsFromCache(ctx context.Context, q domain.AnalyticsQuery) *domain.InventoryAnalytics {
	start, end := analyticsWindow(q, time.Now())
	items, _ := s.stockItems.Get(ctx)
	logs, _ := s.stockLogs.Get(ctx)

	report := &domain.InventoryAnalytics{FromCache: true}
	for _, item := range items {
		if !shopMatches(q.ShopID, item.Shop, nil) {
			continue
		}
		report.TotalStockItems++
		if item.LowStock || item.Quantity <= item.LowStockThreshold {
			report.LowStockItems++
		}
		report.StockItems = append(report.StockItems, domain.StockItemReport{
			ID:        item.ID,
			Name:      item.ItemName,
			Quantity:  item.Quantity,
			Threshold: item.LowStockThreshold,
		})
	}

	movements := map[string]*domain.StockMovement{}
	for _, entry := range logs {
		if !inWindow(entry.LogDate, start, end) || !shopMatches(q.ShopID, entry.Shop, nil) {
			continue
		}
		name := entry.ItemName
		if name == "" {
			name = fmt.Sprintf("item %d", entry.StockItem)
		}
		m, ok := movements[name]
		if !ok {
			m = &domain.StockMovement{Item: name}
			movements[name] = m
		}
		if entry.QuantityChange >= 0 {
			m.Added += entry.QuantityChange
		} else {
			m.Removed += -entry.QuantityChange
		}
		m.Net += entry.QuantityChange
	}
	names := make([]string, 0, len(movements))
	for name := range movements {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		report.StockMovements = append(report.StockMovements, *movements[name])
	}
	return report
}

func (s *service) financialAnalyticsFromCache(ctx context.Context, q domain.AnalyticsQuery) *domain.FinancialAnalytics {
	start, end := analyticsWindow(q, time.Now())
	refills, _ := s.refills.Get(ctx)
	sales, _ := s.sales.Get(ctx)
	expenses, _ := s.expenses.Get(ctx)

	report := &domain.FinancialAnalytics{FromCache: true}
	monthly := map[string]*domain.MonthlyFinancial{}

	for _, r := range refills {
		if !inWindow(r.CreatedAt, start, end) || !shopMatches(q.ShopID, r.Shop, r.ShopDetails) {
			continue
		}
		report.TotalRevenue += r.Cost
		bumpMonthly(monthly, r.CreatedAt, r.Cost, 0)
	}
	for _, sale := range sales {
		if !inWindow(sale.SoldAt, start, end) || !shopMatches(q.ShopID, sale.Shop, sale.ShopDetails) {
			continue
		}
		report.TotalRevenue += sale.Cost
		bumpMonthly(monthly, sale.SoldAt, sale.Cost, 0)
	}

	type datedExpense struct {
		at      time.Time
		expense domain.Expense
	}
	var dated []datedExpense
	for _, e := range expenses {
		if !inWindow(e.CreatedAt, start, end) || !shopMatches(q.ShopID, e.Shop, e.ShopDetails) {
			continue
		}
		report.TotalExpenses += e.Cost
		bumpMonthly(monthly, e.CreatedAt, 0, e.Cost)
		if at, ok := parseRecordTime(e.CreatedAt); ok {
			dated = append(dated, datedExpense{at: at, expense: e})
		}
	}

	report.GrossProfit = report.TotalRevenue
	report.NetProfit = report.TotalRevenue - report.TotalExpenses
	if report.TotalRevenue > 0 {
		report.ProfitMargin = float64(report.NetProfit) / float64(report.TotalRevenue) * 100
	}
	report.CashFlow = &domain.CashFlow{
		Inflow:  report.TotalRevenue,
		Outflow: report.TotalExpenses,
		Net:     report.NetProfit,
	}

	months := make([]string, 0, len(monthly))
	for month := range monthly {
		months = append(months, month)
	}
	sort.Strings(months)
	for _, month := range months {
		m := monthly[month]
		m.Profit = m.Revenue - m.Expenses
		report.MonthlyFinancials = append(report.MonthlyFinancials, *m)
	}

	sort.Slice(dated, func(i, j int) bool { return dated[i].at.After(dated[j].at) })
	for i, d := range dated {
		if i == 5 {
			break
		}
		report.RecentExpenses = append(report.RecentExpenses, domain.RecentExpense{
			ID:          d.expense.ID,
			Date:        d.expense.CreatedAt,
			Description: d.expense.Description,
			Amount:      d.expense.Cost,
		})
	}
	return report
}

// GetDashboardStats is always computed locally. Everything on the home
// screen has to render instantly and the cached collections carry enough
// signal for all of it.
func (s *service) GetDashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	customers, _ := s.customers.Get(ctx)
	refills, _ := s.refills.Get(ctx)
	sales, _ := s.sales.Get(ctx)
	items, _ := s.stockItems.Get(ctx)

	stats := &domain.DashboardStats{
		TotalCustomers:   len(customers),
		PendingSyncCount: s.queue.Count(),
		GeneratedAt:      now.Format(time.RFC3339),
	}
	for _, c := range customers {
		stats.OutstandingCredits += c.CreditBalance
	}
	for _, r := range refills {
		if inWindow(r.CreatedAt, dayStart, now) {
			stats.TodaySalesCount++
			stats.TodayRevenue += r.Cost
		}
	}
	for _, sale := range sales {
		if inWindow(sale.SoldAt, dayStart, now) {
			stats.TodaySalesCount++
			stats.TodayRevenue += sale.Cost
		}
	}
	for _, item := range items {
		if item.LowStock || item.Quantity <= item.LowStockThreshold {
			stats.LowStockCount++
		}
	}

	if raw, err := json.Marshal(stats); err == nil {
		if err := s.store.Set(ctx, "dashboard-stats", []json.RawMessage{raw}); err != nil {
			s.log.Warn().Err(err).Msg("could not cache dashboard stats")
		}
	}
	return stats, nil
}

// analyticsWindow turns the query into a concrete reporting window. An
// explicit start date wins over the named range; a zero start means
// unbounded.
func analyticsWindow(q domain.AnalyticsQuery, now time.Time) (start, end time.Time) {
	end = now
	if q.EndDate != "" {
		if t, err := time.Parse("2006-01-02", q.EndDate); err == nil {
			end = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}
	if q.StartDate != "" {
		if t, err := time.Parse("2006-01-02", q.StartDate); err == nil {
			return t, end
		}
	}
	switch q.TimeRange {
	case "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case "week":
		start = now.AddDate(0, 0, -7)
	case "month":
		start = now.AddDate(0, -1, 0)
	case "year":
		start = now.AddDate(-1, 0, 0)
	}
	return start, end
}

// parseRecordTime accepts the timestamp shapes the backend emits: full
// timestamps with or without zone, and bare dates.
func parseRecordTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func inWindow(value string, start, end time.Time) bool {
	t, ok := parseRecordTime(value)
	if !ok {
		return start.IsZero()
	}
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}

func shopMatches(want int64, shop int64, details *domain.Shop) bool {
	if want == 0 {
		return true
	}
	if shop == want {
		return true
	}
	return details != nil && details.ID == want
}

func bumpDaily(daily map[string]*domain.DailySale, value string, cost domain.Money) {
	t, ok := parseRecordTime(value)
	if !ok {
		return
	}
	key := t.Format("2006-01-02")
	d, ok := daily[key]
	if !ok {
		d = &domain.DailySale{Date: key}
		daily[key] = d
	}
	d.Revenue += cost
	d.Count++
}

func sortedDaily(daily map[string]*domain.DailySale) []domain.DailySale {
	keys := make([]string, 0, len(daily))
	for key := range daily {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]domain.DailySale, 0, len(keys))
	for _, key := range keys {
		out = append(out, *daily[key])
	}
	return out
}

func bumpMonthly(monthly map[string]*domain.MonthlyFinancial, value string, revenue, expense domain.Money) {
	t, ok := parseRecordTime(value)
	if !ok {
		return
	}
	key := t.Format("2006-01")
	m, ok := monthly[key]
	if !ok {
		m = &domain.MonthlyFinancial{Month: key}
		monthly[key] = m
	}
	m.Revenue += revenue
	m.Expenses += expense
}
