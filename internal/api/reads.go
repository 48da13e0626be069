package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/cache"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"

	"github.com/rs/zerolog"
)

// ListOptions narrows a collection read. Page picks the server page for the
// background refresh; CustomerID filters refills and credits client-side.
type ListOptions struct {
	Page       int
	CustomerID int64
}

// RefreshResult is the outcome of a background refresh. A nil Records with a
// nil Err means the backend was not reachable and the cached records are all
// there is.
type RefreshResult[T any] struct {
	Records []T
	Err     error
}

// ReadResult is the answer to a cache-first read. Cached is available
// immediately; Fresh delivers exactly one RefreshResult and is then closed.
type ReadResult[T any] struct {
	Cached []T
	Fresh  <-chan RefreshResult[T]
}

// resolved builds an already-delivered Fresh channel.
func resolved[T any](records []T, err error) <-chan RefreshResult[T] {
	ch := make(chan RefreshResult[T], 1)
	ch <- RefreshResult[T]{Records: records, Err: err}
	close(ch)
	return ch
}

func filterRecords[T any](records []T, keep func(T) bool) []T {
	if keep == nil {
		return records
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func decodeRecords[T any](log zerolog.Logger, collection string, raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var rec T
		if err := json.Unmarshal(r, &rec); err != nil {
			log.Warn().Err(err).Str("collection", collection).Msg("skipping undecodable record")
			continue
		}
		out = append(out, rec)
	}
	return out
}

// readCollection answers from the cache and, when online, refreshes the
// collection from the backend. A page 1 refresh replaces the cached blob,
// keeping pending records on top; deeper pages pass through without touching
// the cache, since merging page N would drop pages 1..N-1.
func readCollection[T any](ctx context.Context, s *service, col cache.Collection[T], opts ListOptions, keep func(T) bool) ReadResult[T] {
	cached, _ := col.Get(ctx)
	res := ReadResult[T]{Cached: filterRecords(cached, keep)}

	if !s.monitor.Connected() {
		res.Fresh = resolved[T](nil, nil)
		return res
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}

	ch := make(chan RefreshResult[T], 1)
	res.Fresh = ch
	go func() {
		defer close(ch)
		env, err := s.client.Page(ctx, col.Name(), page)
		if err != nil {
			ch <- RefreshResult[T]{Err: s.readError(col.Name(), err)}
			return
		}
		if page > 1 {
			ch <- RefreshResult[T]{Records: filterRecords(decodeRecords[T](s.log, col.Name(), env.Results), keep)}
			return
		}
		merged, err := col.MergeRaw(ctx, env.Results)
		if err != nil {
			ch <- RefreshResult[T]{Err: err}
			return
		}
		if err := s.store.SetLastSync(ctx, col.Name(), time.Now()); err != nil {
			s.log.Warn().Err(err).Str("collection", col.Name()).Msg("could not record refresh time")
		}
		ch <- RefreshResult[T]{Records: filterRecords(merged, keep)}
	}()
	return res
}

// readError maps a refresh failure to what the caller should see. An
// unreachable backend is the expected offline case and resolves to nothing;
// an expired session additionally tells the rest of the app to log out.
func (s *service) readError(collection string, err error) error {
	switch {
	case domain.IsUnreachable(err):
		s.log.Debug().Err(err).Str("collection", collection).Msg("refresh skipped, backend unreachable")
		return nil
	case domain.IsSessionExpired(err):
		s.bus.Publish(domain.EventSessionExpired)
		return err
	default:
		return err
	}
}

func (s *service) GetShops(ctx context.Context) ReadResult[domain.Shop] {
	return readCollection(ctx, s, s.shops, ListOptions{}, nil)
}

// GetCustomers never refreshes from the paginated endpoint: the cache holds
// the full export and a page 1 overwrite would truncate it to one page. The
// preloader refreshes the catalog via the export endpoint instead.
func (s *service) GetCustomers(ctx context.Context) ReadResult[domain.Customer] {
	cached, _ := s.customers.Get(ctx)
	return ReadResult[domain.Customer]{
		Cached: cached,
		Fresh:  resolved[domain.Customer](nil, nil),
	}
}

func (s *service) GetPackages(ctx context.Context, shopID int64) ReadResult[domain.Package] {
	cached, _ := s.packages.Get(ctx)
	var keep func(domain.Package) bool
	if shopID != 0 {
		keep = func(p domain.Package) bool {
			if p.Shop == shopID {
				return true
			}
			return p.ShopDetails != nil && p.ShopDetails.ID == shopID
		}
	}
	return ReadResult[domain.Package]{
		Cached: filterRecords(cached, keep),
		Fresh:  resolved[domain.Package](nil, nil),
	}
}

func (s *service) GetRefills(ctx context.Context, opts ListOptions) ReadResult[domain.Refill] {
	var keep func(domain.Refill) bool
	if opts.CustomerID != 0 {
		keep = func(r domain.Refill) bool {
			if r.Customer == opts.CustomerID {
				return true
			}
			return r.CustomerDetails != nil && r.CustomerDetails.ID == opts.CustomerID
		}
	}
	return readCollection(ctx, s, s.refills, opts, keep)
}

func (s *service) GetSales(ctx context.Context, opts ListOptions) ReadResult[domain.Sale] {
	return readCollection(ctx, s, s.sales, opts, nil)
}

func (s *service) GetCredits(ctx context.Context, opts ListOptions) ReadResult[domain.Credit] {
	var keep func(domain.Credit) bool
	if opts.CustomerID != 0 {
		keep = func(c domain.Credit) bool {
			if c.Customer == opts.CustomerID {
				return true
			}
			return c.CustomerDetails != nil && c.CustomerDetails.ID == opts.CustomerID
		}
	}
	return readCollection(ctx, s, s.credits, opts, keep)
}

func (s *service) GetExpenses(ctx context.Context, opts ListOptions) ReadResult[domain.Expense] {
	return readCollection(ctx, s, s.expenses, opts, nil)
}

func (s *service) GetStockItems(ctx context.Context, opts ListOptions) ReadResult[domain.StockItem] {
	return readCollection(ctx, s, s.stockItems, opts, nil)
}

func (s *service) GetStockLogs(ctx context.Context, opts ListOptions) ReadResult[domain.StockLog] {
	return readCollection(ctx, s, s.stockLogs, opts, nil)
}

func (s *service) GetMeterReadings(ctx context.Context, opts ListOptions) ReadResult[domain.MeterReading] {
	return readCollection(ctx, s, s.meterReadings, opts, nil)
}

func (s *service) GetSMSHistory(ctx context.Context, opts ListOptions) ReadResult[domain.SMSRecord] {
	return readCollection(ctx, s, s.smsHistory, opts, nil)
}

func (s *service) GetNotifications(ctx context.Context, opts ListOptions) ReadResult[domain.Notification] {
	return readCollection(ctx, s, s.notifications, opts, nil)
}

// GetLowStock answers from the cached stock items rather than the low-stock
// blob, so a stock log queued a second ago is already reflected. The
// background fetch stores the server's authoritative list.
func (s *service) GetLowStock(ctx context.Context) ReadResult[domain.StockItem] {
	items, _ := s.stockItems.Get(ctx)
	low := make([]domain.StockItem, 0)
	for _, item := range items {
		if item.LowStock || item.Quantity <= item.LowStockThreshold {
			low = append(low, item)
		}
	}
	res := ReadResult[domain.StockItem]{Cached: low}

	if !s.monitor.Connected() {
		res.Fresh = resolved[domain.StockItem](nil, nil)
		return res
	}

	ch := make(chan RefreshResult[domain.StockItem], 1)
	res.Fresh = ch
	go func() {
		defer close(ch)
		raw, err := s.client.LowStock(ctx)
		if err != nil {
			ch <- RefreshResult[domain.StockItem]{Err: s.readError("low-stock", err)}
			return
		}
		if err := s.store.Set(ctx, "low-stock", raw); err != nil {
			s.log.Warn().Err(err).Msg("could not cache low stock list")
		}
		ch <- RefreshResult[domain.StockItem]{Records: decodeRecords[domain.StockItem](s.log, "low-stock", raw)}
	}()
	return res
}

func (s *service) GetUserProfile(ctx context.Context) ReadResult[domain.UserProfile] {
	cached, _ := s.profile.Get(ctx)
	res := ReadResult[domain.UserProfile]{Cached: cached}

	if !s.monitor.Connected() {
		res.Fresh = resolved[domain.UserProfile](nil, nil)
		return res
	}

	ch := make(chan RefreshResult[domain.UserProfile], 1)
	res.Fresh = ch
	go func() {
		defer close(ch)
		me, err := s.client.Me(ctx)
		if err != nil {
			ch <- RefreshResult[domain.UserProfile]{Err: s.readError("user-profile", err)}
			return
		}
		fresh := []domain.UserProfile{*me}
		if err := s.profile.Set(ctx, fresh); err != nil {
			ch <- RefreshResult[domain.UserProfile]{Err: err}
			return
		}
		ch <- RefreshResult[domain.UserProfile]{Records: fresh}
	}()
	return res
}
