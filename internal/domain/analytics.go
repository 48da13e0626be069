package domain

// AnalyticsQuery selects the reporting window for the analytics endpoints.
// Zero-value fields are omitted from the query string.
type AnalyticsQuery struct {
	TimeRange string
	ShopID    int64
	StartDate string
	EndDate   string
}

// DailySale is one day's revenue bucket.
type DailySale struct {
	Date    string `json:"date"`
	Revenue Money  `json:"revenue"`
	Count   int    `json:"count"`
}

// TopPackage is a best-seller entry.
type TopPackage struct {
	Name    string `json:"name"`
	Sales   int    `json:"sales"`
	Revenue Money  `json:"revenue"`
}

// SalesAnalytics mirrors the backend's sales report. FromCache marks a local
// approximation computed from cached collections while offline.
type SalesAnalytics struct {
	Period                     string           `json:"period"`
	TotalRevenue               Money            `json:"total_revenue"`
	RefillRevenue              Money            `json:"refill_revenue"`
	BottleSalesRevenue         Money            `json:"bottle_sales_revenue"`
	TotalSalesCount            int              `json:"total_sales_count"`
	RefillCount                int              `json:"refill_count"`
	BottleSalesCount           int              `json:"bottle_sales_count"`
	SalesByPaymentMode         map[string]Money `json:"sales_by_payment_mode,omitempty"`
	SalesByShop                map[string]Money `json:"sales_by_shop,omitempty"`
	DailySales                 []DailySale      `json:"daily_sales,omitempty"`
	TopPackages                []TopPackage     `json:"top_packages,omitempty"`
	RevenueChangePercentage    float64          `json:"revenue_change_percentage"`
	SalesCountChangePercentage float64          `json:"sales_count_change_percentage"`
	FromCache                  bool             `json:"_fromCache,omitempty"`
}

// CustomerGrowthPoint is one month's customer count.
type CustomerGrowthPoint struct {
	Month     string `json:"month"`
	Customers int    `json:"customers"`
}

// LoyaltyMetrics summarises the loyalty program across customers.
type LoyaltyMetrics struct {
	EligibleForFreeRefill     int     `json:"eligible_for_free_refill"`
	RedeemedThisMonth         int     `json:"redeemed_this_month"`
	AverageRefillsPerCustomer float64 `json:"average_refills_per_customer"`
}

// CreditAnalysis summarises credit exposure across customers.
type CreditAnalysis struct {
	TotalCreditGiven     Money   `json:"total_credit_given"`
	TotalRepaid          Money   `json:"total_repaid"`
	CreditCustomers      int     `json:"credit_customers"`
	AvgCreditPerCustomer Money   `json:"avg_credit_per_customer"`
	RepaymentRate        float64 `json:"repayment_rate,omitempty"`
}

// TopCustomer is a high-value customer entry.
type TopCustomer struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Refills    int    `json:"refills"`
	Purchases  int    `json:"purchases"`
	TotalSpent Money  `json:"total_spent"`
}

// CustomerAnalytics mirrors the backend's customer report.
type CustomerAnalytics struct {
	TotalCustomers        int                   `json:"total_customers"`
	ActiveCustomers       int                   `json:"active_customers"`
	NewCustomers          int                   `json:"new_customers"`
	LoyaltyRedemptions    int                   `json:"loyalty_redemptions"`
	AvgTimeBetweenRefills float64               `json:"avg_time_between_refills"`
	CreditsOutstanding    Money                 `json:"credits_outstanding"`
	CustomerGrowth        []CustomerGrowthPoint `json:"customer_growth,omitempty"`
	CustomerActivity      map[string]int        `json:"customer_activity,omitempty"`
	LoyaltyMetrics        *LoyaltyMetrics       `json:"loyalty_metrics,omitempty"`
	CreditAnalysis        *CreditAnalysis       `json:"credit_analysis,omitempty"`
	TopCustomers          []TopCustomer         `json:"top_customers,omitempty"`
	FromCache             bool                  `json:"_fromCache,omitempty"`
}

// StockItemReport is one inventory line in the inventory report.
type StockItemReport struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Quantity     int    `json:"quantity"`
	Threshold    int    `json:"threshold"`
	ReorderPoint int    `json:"reorder_point,omitempty"`
}

// ConsumptionPoint is one day's estimated water consumption in litres.
type ConsumptionPoint struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"`
}

// StockMovement is the net flow for one inventory item over the period.
type StockMovement struct {
	Item    string `json:"item"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
	Net     int    `json:"net"`
}

// InventoryAnalytics mirrors the backend's inventory report.
type InventoryAnalytics struct {
	TotalStockItems        int                `json:"total_stock_items"`
	LowStockItems          int                `json:"low_stock_items"`
	WaterConsumption       float64            `json:"water_consumption"`
	WaterWastage           float64            `json:"water_wastage"`
	StockItems             []StockItemReport  `json:"stock_items,omitempty"`
	WaterConsumptionTrends []ConsumptionPoint `json:"water_consumption_trends,omitempty"`
	StockMovements         []StockMovement    `json:"stock_movements,omitempty"`
	FromCache              bool               `json:"_fromCache,omitempty"`
}

// MonthlyFinancial is one month's profit and loss line.
type MonthlyFinancial struct {
	Month    string `json:"month"`
	Revenue  Money  `json:"revenue"`
	Expenses Money  `json:"expenses"`
	Profit   Money  `json:"profit"`
}

// CashFlow is the period's money movement.
type CashFlow struct {
	Inflow  Money `json:"inflow"`
	Outflow Money `json:"outflow"`
	Net     Money `json:"net"`
}

// RecentExpense is one line of the latest-expenses listing.
type RecentExpense struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Category    string `json:"category,omitempty"`
}

// FinancialAnalytics mirrors the backend's financial report.
type FinancialAnalytics struct {
	TotalRevenue            Money              `json:"total_revenue"`
	GrossProfit             Money              `json:"gross_profit"`
	NetProfit               Money              `json:"net_profit"`
	TotalExpenses           Money              `json:"total_expenses"`
	ProfitMargin            float64            `json:"profit_margin"`
	ExpenseCategories       map[string]Money   `json:"expense_categories,omitempty"`
	RevenueByShop           map[string]Money   `json:"revenue_by_shop,omitempty"`
	MonthlyFinancials       []MonthlyFinancial `json:"monthly_financials,omitempty"`
	CashFlow                *CashFlow          `json:"cash_flow,omitempty"`
	RecentExpenses          []RecentExpense    `json:"recent_expenses,omitempty"`
	RevenueChangePercentage float64            `json:"revenue_change_percentage"`
	ExpenseChangePercentage float64            `json:"expense_change_percentage"`
	ProfitChangePercentage  float64            `json:"profit_change_percentage"`
	FromCache               bool               `json:"_fromCache,omitempty"`
}

// DashboardStats is the client-assembled dashboard summary. It is derived
// from cached collections rather than a dedicated endpoint, so it is always
// available offline.
type DashboardStats struct {
	TotalCustomers     int    `json:"total_customers"`
	TodaySalesCount    int    `json:"today_sales_count"`
	TodayRevenue       Money  `json:"today_revenue"`
	LowStockCount      int    `json:"low_stock_count"`
	OutstandingCredits Money  `json:"outstanding_credits"`
	PendingSyncCount   int    `json:"pending_sync_count"`
	GeneratedAt        string `json:"generated_at,omitempty"`
}
