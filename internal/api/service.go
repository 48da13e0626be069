package api

import (
	"context"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/queue"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/rest"

	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
)

// Connectivity reports whether the backend is currently reachable.
type Connectivity interface {
	Connected() bool
}

// Engine drains the offline queue on demand.
type Engine interface {
	ProcessQueue(ctx context.Context) *domain.SyncReport
}

// Service is the single data entry point for the UI layer. Reads answer from
// the cache immediately and refresh in the background; writes land in the
// offline queue and appear in the cache as pending records. The network is
// never on the critical path of either.
type Service interface {
	// GetShops returns the cached shop list and refreshes it when online.
	GetShops(ctx context.Context) ReadResult[domain.Shop]
	// GetCustomers returns the customer catalog. The cache holds the full
	// export, so no page refresh is issued; Fresh always resolves empty.
	GetCustomers(ctx context.Context) ReadResult[domain.Customer]
	// GetPackages returns the package catalog, filtered by shop when shopID
	// is non-zero. Like customers, the catalog only changes via the export
	// endpoint during preload.
	GetPackages(ctx context.Context, shopID int64) ReadResult[domain.Package]
	// GetRefills lists refills, optionally filtered by customer. The filter
	// applies to both the cached and the refreshed records.
	GetRefills(ctx context.Context, opts ListOptions) ReadResult[domain.Refill]
	GetSales(ctx context.Context, opts ListOptions) ReadResult[domain.Sale]
	// GetCredits lists credit repayments, optionally filtered by customer.
	GetCredits(ctx context.Context, opts ListOptions) ReadResult[domain.Credit]
	GetExpenses(ctx context.Context, opts ListOptions) ReadResult[domain.Expense]
	GetStockItems(ctx context.Context, opts ListOptions) ReadResult[domain.StockItem]
	GetStockLogs(ctx context.Context, opts ListOptions) ReadResult[domain.StockLog]
	GetMeterReadings(ctx context.Context, opts ListOptions) ReadResult[domain.MeterReading]
	GetSMSHistory(ctx context.Context, opts ListOptions) ReadResult[domain.SMSRecord]
	GetNotifications(ctx context.Context, opts ListOptions) ReadResult[domain.Notification]
	// GetLowStock derives the low stock list from the cached stock items and
	// refreshes it from the dedicated endpoint in the background.
	GetLowStock(ctx context.Context) ReadResult[domain.StockItem]
	// GetUserProfile returns the cached profile of the signed-in user.
	GetUserProfile(ctx context.Context) ReadResult[domain.UserProfile]

	// QueueCustomer registers a customer. The record is returned stamped
	// with its client id and pending marker.
	QueueCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	// QueueRefill records a refill sale. A CREDIT sale also bumps the
	// customer's cached credit balance by the refill cost.
	QueueRefill(ctx context.Context, refill domain.Refill) (*domain.Refill, error)
	QueueSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	// QueueCreditPayment records a repayment and reduces the customer's
	// cached credit balance by the amount paid.
	QueueCreditPayment(ctx context.Context, payment domain.Credit) (*domain.Credit, error)
	QueueExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	QueueStockLog(ctx context.Context, entry domain.StockLog) (*domain.StockLog, error)
	QueueMeterReading(ctx context.Context, reading domain.MeterReading) (*domain.MeterReading, error)
	// QueueSMS queues a text message to one customer.
	QueueSMS(ctx context.Context, customerID int64, message string) (*domain.SMSRecord, error)

	// CheckLoyaltyInfo prices a refill against the loyalty program. Online
	// it asks the backend; offline it computes the same answer from cached
	// state and marks the result as cache-derived.
	CheckLoyaltyInfo(ctx context.Context, customerID int64, packageID int64, quantity int) (*domain.LoyaltyCheck, error)

	// The analytics reads ask the backend when reachable and otherwise
	// approximate the report from cached records, marked as cache-derived.
	GetSalesAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.SalesAnalytics, error)
	GetCustomerAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.CustomerAnalytics, error)
	GetInventoryAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.InventoryAnalytics, error)
	GetFinancialAnalytics(ctx context.Context, q domain.AnalyticsQuery) (*domain.FinancialAnalytics, error)
	// GetDashboardStats summarises the cached collections for the home
	// screen. It never touches the network.
	GetDashboardStats(ctx context.Context) (*domain.DashboardStats, error)

	// PendingItems lists the queued mutations still owed to the backend.
	PendingItems() []domain.QueueItem
	PendingCount() int
	RetryQueueItem(ctx context.Context, id string) error
	RetryAllFailed(ctx context.Context) (int, error)
	// RemoveQueueItem drops a queued mutation and its pending cache record.
	RemoveQueueItem(ctx context.Context, id string) error
	// TriggerSync runs a queue drain now and reports the outcome.
	TriggerSync(ctx context.Context) *domain.SyncReport
	// LastSyncTimes reports when each collection last saw a successful
	// refresh.
	LastSyncTimes(ctx context.Context) map[string]time.Time
}

type service struct {
	log     zerolog.Logger
	bus     EventBus.Bus
	store   *cache.Store
	queue   queue.Service
	client  rest.Client
	monitor Connectivity
	engine  Engine

	shops         cache.Collection[domain.Shop]
	customers     cache.Collection[domain.Customer]
	packages      cache.Collection[domain.Package]
	refills       cache.Collection[domain.Refill]
	sales         cache.Collection[domain.Sale]
	credits       cache.Collection[domain.Credit]
	expenses      cache.Collection[domain.Expense]
	stockItems    cache.Collection[domain.StockItem]
	stockLogs     cache.Collection[domain.StockLog]
	meterReadings cache.Collection[domain.MeterReading]
	smsHistory    cache.Collection[domain.SMSRecord]
	notifications cache.Collection[domain.Notification]
	profile       cache.Collection[domain.UserProfile]
}

func NewService(log logger.Logger, bus EventBus.Bus, store *cache.Store, q queue.Service, client rest.Client, monitor Connectivity, engine Engine) Service {
	return &service{
		log:     log.With().Str("module", "api").Logger(),
		bus:     bus,
		store:   store,
		queue:   q,
		client:  client,
		monitor: monitor,
		engine:  engine,

		shops:         cache.NewCollection[domain.Shop](store, "shops"),
		customers:     cache.NewCollection[domain.Customer](store, "customers"),
		packages:      cache.NewCollection[domain.Package](store, "packages"),
		refills:       cache.NewCollection[domain.Refill](store, "refills"),
		sales:         cache.NewCollection[domain.Sale](store, "sales"),
		credits:       cache.NewCollection[domain.Credit](store, "credits"),
		expenses:      cache.NewCollection[domain.Expense](store, "expenses"),
		stockItems:    cache.NewCollection[domain.StockItem](store, "stock-items"),
		stockLogs:     cache.NewCollection[domain.StockLog](store, "stock-logs"),
		meterReadings: cache.NewCollection[domain.MeterReading](store, "meter-readings"),
		smsHistory:    cache.NewCollection[domain.SMSRecord](store, "sms-history"),
		notifications: cache.NewCollection[domain.Notification](store, "notifications"),
		profile:       cache.NewCollection[domain.UserProfile](store, "user-profile"),
	}
}

func (s *service) PendingItems() []domain.QueueItem {
	return s.queue.PendingItems()
}

func (s *service) PendingCount() int {
	return s.queue.Count()
}

func (s *service) RetryQueueItem(ctx context.Context, id string) error {
	return s.queue.Retry(ctx, id)
}

func (s *service) RetryAllFailed(ctx context.Context) (int, error) {
	return s.queue.RetryAllFailed(ctx)
}

// RemoveQueueItem is the one path that forgets user input on purpose, so the
// pending cache record goes with the queue item. A credit balance adjusted
// when the item was queued is not rolled back; the next customer refresh
// corrects it.
func (s *service) RemoveQueueItem(ctx context.Context, id string) error {
	for _, item := range s.queue.PendingItems() {
		if item.ID != id {
			continue
		}
		if collection := item.Type.Collection(); collection != "" {
			if err := s.store.RemovePending(ctx, collection, id); err != nil {
				s.log.Warn().Err(err).Str("id", id).Msg("could not remove pending cache record")
			}
		}
		break
	}
	return s.queue.Remove(ctx, id)
}

func (s *service) TriggerSync(ctx context.Context) *domain.SyncReport {
	return s.engine.ProcessQueue(ctx)
}

func (s *service) LastSyncTimes(ctx context.Context) map[string]time.Time {
	return s.store.LastSync(ctx)
}
