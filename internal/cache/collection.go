package cache

import (
	"context"
	"encoding/json"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/pkg/errors"
)

// Collection is a typed view over one cached collection. Wire shapes stay in
// the store as raw JSON; this layer only decodes at the edges so unknown
// server fields survive round-trips through the structs' Extra maps.
type Collection[T any] struct {
	store *Store
	name  string
}

func NewCollection[T any](store *Store, name string) Collection[T] {
	return Collection[T]{store: store, name: name}
}

func (c Collection[T]) Name() string { return c.name }

// Get decodes the cached records. Individually undecodable records are
// skipped, not fatal.
func (c Collection[T]) Get(ctx context.Context) ([]T, bool) {
	raw, ok := c.store.Get(ctx, c.name)
	if !ok {
		return nil, false
	}
	return c.decode(raw), true
}

// Set overwrites the collection.
func (c Collection[T]) Set(ctx context.Context, records []T) error {
	raw, err := c.encode(records)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.name, raw)
}

// SetRaw overwrites the collection with records already in wire form.
func (c Collection[T]) SetRaw(ctx context.Context, records []json.RawMessage) error {
	return c.store.Set(ctx, c.name, records)
}

// MergeWithFresh folds typed server records into the collection and returns
// the merged view.
func (c Collection[T]) MergeWithFresh(ctx context.Context, fresh []T) ([]T, error) {
	raw, err := c.encode(fresh)
	if err != nil {
		return nil, err
	}
	return c.MergeRaw(ctx, raw)
}

// MergeRaw folds server records still in wire form into the collection.
func (c Collection[T]) MergeRaw(ctx context.Context, fresh []json.RawMessage) ([]T, error) {
	merged, err := c.store.MergeWithFresh(ctx, c.name, fresh)
	if err != nil {
		return nil, err
	}
	return c.decode(merged), nil
}

// AddPending stamps and prepends a locally originated record, returning it
// with its client id and overlay markers filled in.
func (c Collection[T]) AddPending(ctx context.Context, record T) (T, error) {
	var zero T

	raw, err := json.Marshal(record)
	if err != nil {
		return zero, errors.Wrap(err, "failed to encode %s record", c.name)
	}
	stamped, err := c.store.AddPending(ctx, c.name, raw)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(stamped, &out); err != nil {
		return zero, errors.Wrap(err, "failed to decode stamped %s record", c.name)
	}
	return out, nil
}

func (c Collection[T]) RemovePending(ctx context.Context, clientID string) error {
	return c.store.RemovePending(ctx, c.name, clientID)
}

func (c Collection[T]) ConfirmPending(ctx context.Context, clientID string, server json.RawMessage) error {
	return c.store.ConfirmPending(ctx, c.name, clientID, server)
}

func (c Collection[T]) decode(raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, rec := range raw {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			c.store.log.Warn().Err(err).Str("collection", c.name).Msg("skipping undecodable cached record")
			continue
		}
		out = append(out, v)
	}
	return out
}

func (c Collection[T]) encode(records []T) ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode %s record", c.name)
		}
		raw = append(raw, b)
	}
	return raw, nil
}
