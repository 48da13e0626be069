package domain

import (
	"context"
	"time"
)

// KVEntry is one persisted key. Values are opaque blobs; higher layers own
// the encoding.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     []byte    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// KVRepo is the persistent string-to-bytes map everything above the database
// builds on. Get returns (nil, nil) for an absent key; writes of a single key
// are atomic; Delete removes every named key in one statement.
type KVRepo interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
