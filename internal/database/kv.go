package database

import (
	"context"
	"time"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/logger"
	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func NewKVRepo(log logger.Logger, db *DB) domain.KVRepo {
	return &KVRepo{
		log: log.With().Str("repo", "kv").Logger(),
		db:  db,
	}
}

type KVRepo struct {
	log zerolog.Logger
	db  *DB
}

// Get fetches a single value. An absent key returns (nil, nil).
func (r *KVRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var entry domain.KVEntry
	result := r.db.Get().WithContext(ctx).
		Where("key = ?", key).
		First(&entry)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error().Err(result.Error).Str("key", key).Msg("Failed to get kv entry")
		return nil, errors.Wrap(result.Error, "failed to get kv entry %s", key)
	}

	return entry.Value, nil
}

// Set creates or replaces a key (UPSERT logic).
func (r *KVRepo) Set(ctx context.Context, key string, value []byte) error {
	now := time.Now()
	db := r.db.Get().WithContext(ctx)

	// Try to update first
	updateResult := db.Model(&domain.KVEntry{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"value":      value,
			"updated_at": now,
		})

	if updateResult.Error != nil {
		r.log.Error().Err(updateResult.Error).Str("key", key).Msg("Error updating kv entry")
		return errors.Wrap(updateResult.Error, "error updating kv entry %s", key)
	}

	// If no rows were affected by the update, insert a new record
	if updateResult.RowsAffected == 0 {
		entry := domain.KVEntry{
			Key:       key,
			Value:     value,
			UpdatedAt: now,
		}
		if createResult := db.Create(&entry); createResult.Error != nil {
			r.log.Error().Err(createResult.Error).Str("key", key).Msg("Error inserting kv entry")
			return errors.Wrap(createResult.Error, "error inserting kv entry %s", key)
		}
	}

	return nil
}

// Delete removes the named keys. Missing keys are not an error.
func (r *KVRepo) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	result := r.db.Get().WithContext(ctx).
		Where("key IN ?", keys).
		Delete(&domain.KVEntry{})

	if result.Error != nil {
		r.log.Error().Err(result.Error).Strs("keys", keys).Msg("Failed to delete kv entries")
		return errors.Wrap(result.Error, "failed to delete kv entries")
	}

	return nil
}

// ListKeys returns every key starting with prefix, in lexical order.
func (r *KVRepo) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	result := r.db.Get().WithContext(ctx).
		Model(&domain.KVEntry{}).
		Where("key LIKE ?", prefix+"%").
		Order("key").
		Pluck("key", &keys)

	if result.Error != nil {
		r.log.Error().Err(result.Error).Str("prefix", prefix).Msg("Failed to list kv keys")
		return nil, errors.Wrap(result.Error, "failed to list kv keys")
	}

	return keys, nil
}
