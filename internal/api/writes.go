package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
)

// enqueue is the write path shared by every QueueX operation: persist the
// mutation in the offline queue, then mirror it into the collection cache as
// a pending record carrying the same client id. It never touches the
// network; the sync engine delivers the payload later.
func (s *service) enqueue(ctx context.Context, itemType domain.QueueItemType, endpoint string, record any) (json.RawMessage, error) {
	payload, err := payloadFields(record)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode %s payload", itemType)
	}

	item, err := s.queue.Add(ctx, itemType, endpoint, payload, "")
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(item.Data)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode queued %s record", itemType)
	}
	stamped, err := s.store.AddPending(ctx, itemType.Collection(), raw)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("type", string(itemType)).Str("client_id", item.ID).Msg("mutation queued")
	return stamped, nil
}

// payloadFields flattens a domain record into the field map the queue
// stores. omitempty tags keep unset fields out of the payload.
func payloadFields(record any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func queueRecord[T any](ctx context.Context, s *service, itemType domain.QueueItemType, endpoint string, record T) (*T, error) {
	stamped, err := s.enqueue(ctx, itemType, endpoint, record)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(stamped, &out); err != nil {
		return nil, errors.Wrap(err, "could not decode stamped %s record", itemType)
	}
	return &out, nil
}

func (s *service) QueueCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	return queueRecord(ctx, s, domain.QueueTypeCustomer, "customers/", customer)
}

func (s *service) QueueRefill(ctx context.Context, refill domain.Refill) (*domain.Refill, error) {
	out, err := queueRecord(ctx, s, domain.QueueTypeRefill, "refills/", refill)
	if err != nil {
		return nil, err
	}
	if out.PaymentMode == domain.PaymentCredit && out.Customer != 0 {
		s.applyCreditDelta(ctx, out.Customer, float64(out.Cost))
	}
	return out, nil
}

func (s *service) QueueSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	out, err := queueRecord(ctx, s, domain.QueueTypeSale, "sales/", sale)
	if err != nil {
		return nil, err
	}
	if out.PaymentMode == domain.PaymentCredit && out.Customer != 0 {
		s.applyCreditDelta(ctx, out.Customer, float64(out.Cost))
	}
	return out, nil
}

func (s *service) QueueCreditPayment(ctx context.Context, payment domain.Credit) (*domain.Credit, error) {
	out, err := queueRecord(ctx, s, domain.QueueTypeCreditPayment, "credits/", payment)
	if err != nil {
		return nil, err
	}
	if out.Customer != 0 && out.MoneyPaid != 0 {
		s.applyCreditDelta(ctx, out.Customer, -float64(out.MoneyPaid))
	}
	return out, nil
}

func (s *service) QueueExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	return queueRecord(ctx, s, domain.QueueTypeExpense, "expenses/", expense)
}

func (s *service) QueueStockLog(ctx context.Context, entry domain.StockLog) (*domain.StockLog, error) {
	return queueRecord(ctx, s, domain.QueueTypeStockLog, "stock-logs/", entry)
}

func (s *service) QueueMeterReading(ctx context.Context, reading domain.MeterReading) (*domain.MeterReading, error) {
	return queueRecord(ctx, s, domain.QueueTypeMeterReading, "meter-readings/", reading)
}

func (s *service) QueueSMS(ctx context.Context, customerID int64, message string) (*domain.SMSRecord, error) {
	if customerID == 0 {
		return nil, errors.New("send sms: customer id is required")
	}
	record := domain.SMSRecord{Customer: customerID, Message: message}
	endpoint := fmt.Sprintf("customers/%d/send_sms/", customerID)
	return queueRecord(ctx, s, domain.QueueTypeSMS, endpoint, record)
}

// applyCreditDelta adjusts the cached credit balance so the customer screen
// reflects a queued transaction before it syncs. Best effort: the export
// refresh is the source of truth.
func (s *service) applyCreditDelta(ctx context.Context, customerID int64, delta float64) {
	if err := s.store.UpdateCustomerCreditBalance(ctx, customerID, delta); err != nil {
		s.log.Warn().Err(err).Int64("customer", customerID).Msg("could not adjust cached credit balance")
	}
}
