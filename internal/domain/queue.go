package domain

import (
	"encoding/json"
	"time"
)

// QueueItemStatus is the per-item sync state.
type QueueItemStatus string

const (
	QueueStatusPending QueueItemStatus = "pending"
	QueueStatusSyncing QueueItemStatus = "syncing"
	QueueStatusFailed  QueueItemStatus = "failed"
)

// QueueItemType names the mutation a queue item carries. The type picks the
// target endpoint and the timestamp field stamped at enqueue time.
type QueueItemType string

const (
	QueueTypeCustomer      QueueItemType = "customer"
	QueueTypeRefill        QueueItemType = "refill"
	QueueTypeSale          QueueItemType = "sale"
	QueueTypeCredit        QueueItemType = "credit"
	QueueTypeCreditPayment QueueItemType = "credit_payment"
	QueueTypeExpense       QueueItemType = "expense"
	QueueTypeStockLog      QueueItemType = "stock_log"
	QueueTypeMeterReading  QueueItemType = "meter_reading"
	QueueTypeSMS           QueueItemType = "sms"
)

// TimestampField returns the payload field this type stamps when the caller
// did not supply one.
func (t QueueItemType) TimestampField() string {
	switch t {
	case QueueTypeSale:
		return "sold_at"
	case QueueTypeCredit, QueueTypeCreditPayment:
		return "payment_date"
	case QueueTypeStockLog:
		return "log_date"
	case QueueTypeMeterReading:
		return "reading_date"
	default:
		return "created_at"
	}
}

// Collection returns the cache collection this type's pending overlay lives in.
func (t QueueItemType) Collection() string {
	switch t {
	case QueueTypeCustomer:
		return "customers"
	case QueueTypeRefill:
		return "refills"
	case QueueTypeSale:
		return "sales"
	case QueueTypeCredit, QueueTypeCreditPayment:
		return "credits"
	case QueueTypeExpense:
		return "expenses"
	case QueueTypeStockLog:
		return "stock-logs"
	case QueueTypeMeterReading:
		return "meter-readings"
	case QueueTypeSMS:
		return "sms-history"
	}
	return ""
}

// QueueItem is one durable pending mutation. ID doubles as the payload's
// client_id, which is what makes replays idempotent.
type QueueItem struct {
	ID           string                     `json:"id"`
	Type         QueueItemType              `json:"type"`
	Endpoint     string                     `json:"endpoint"`
	Method       string                     `json:"method"`
	Data         map[string]json.RawMessage `json:"data"`
	Status       QueueItemStatus            `json:"status"`
	RetryCount   int                        `json:"retry_count"`
	CreatedAt    time.Time                  `json:"created_at"`
	LastAttempt  *time.Time                 `json:"last_attempt,omitempty"`
	ErrorMessage string                     `json:"error_message,omitempty"`
}

// SyncReport summarises one queue drain.
type SyncReport struct {
	Synced  int  `json:"synced"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped"`
}
