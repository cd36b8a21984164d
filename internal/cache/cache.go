// Package cache provides a Redis read-through cache in front of the item store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erazemk/integration-api/internal/model"
)

// DefaultTTL is how long a cached item is served before it is re-read.
const DefaultTTL = 5 * time.Minute

// Store is the set of item operations the cache wraps.
type Store interface {
	Create(ctx context.Context, in model.NewItem) (*model.Item, error)
	Get(ctx context.Context, id int64) (*model.Item, error)
	List(ctx context.Context) ([]model.Item, error)
	Update(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Items caches single-item lookups in Redis. Lists are always read from the
// store. Redis failures are logged and never fail the operation.
type Items struct {
	Store  Store
	Client *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

// New returns a caching wrapper around store.
func New(store Store, client *redis.Client, logger *zap.Logger) *Items {
	return &Items{Store: store, Client: client, TTL: DefaultTTL, Logger: logger}
}

// Connect creates a Redis client and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

func key(id int64) string {
	return fmt.Sprintf("item:%d", id)
}

// versionKey counts writes to an item. Update and Delete increment it.
func versionKey(id int64) string {
	return fmt.Sprintf("item:%d:v", id)
}

var errStale = errors.New("item changed while it was being read")

// Create inserts through to the store. New ids are never cached yet.
func (c *Items) Create(ctx context.Context, in model.NewItem) (*model.Item, error) {
	return c.Store.Create(ctx, in)
}

// Get serves the item from Redis when present, otherwise from the store.
// A store read is only cached if no write to the same id happened since the
// read started; see fill.
func (c *Items) Get(ctx context.Context, id int64) (*model.Item, error) {
	data, err := c.Client.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var item model.Item
		if err := json.Unmarshal(data, &item); err == nil {
			return &item, nil
		}
		c.Logger.Warn("discarding undecodable cache entry", zap.Int64("item_id", id))
	case !errors.Is(err, redis.Nil):
		c.Logger.Warn("cache read failed", zap.Int64("item_id", id), zap.Error(err))
	}

	// The version must be read before the store, so a write landing in
	// between always bumps it past what we saw.
	ver, verErr := c.version(ctx, id)

	item, err := c.Store.Get(ctx, id)
	if err != nil || item == nil {
		return item, err
	}

	if verErr == nil {
		c.fill(ctx, item, ver)
	}
	return item, nil
}

// List always reads from the store.
func (c *Items) List(ctx context.Context) ([]model.Item, error) {
	return c.Store.List(ctx)
}

// Update writes through to the store and drops the cached copy.
func (c *Items) Update(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error) {
	item, err := c.Store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if item != nil && !patch.Empty() {
		c.invalidate(ctx, id)
	}
	return item, nil
}

// Delete removes the item from the store and the cache.
func (c *Items) Delete(ctx context.Context, id int64) (bool, error) {
	removed, err := c.Store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		c.invalidate(ctx, id)
	}
	return removed, nil
}

func (c *Items) version(ctx context.Context, id int64) (int64, error) {
	v, err := c.Client.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// fill caches item only while its version still equals ver. The SET runs in
// a MULTI guarded by WATCH on the version key, so an increment between the
// check and the write aborts it.
func (c *Items) fill(ctx context.Context, item *model.Item, ver int64) {
	data, err := json.Marshal(item)
	if err != nil {
		c.Logger.Warn("encoding cache entry", zap.Int64("item_id", item.ID), zap.Error(err))
		return
	}

	vkey := versionKey(item.ID)
	err = c.Client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != ver {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(item.ID), data, c.TTL)
			return nil
		})
		return err
	}, vkey)

	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		c.Logger.Debug("skipping cache fill after concurrent write", zap.Int64("item_id", item.ID))
	default:
		c.Logger.Warn("cache write failed", zap.Int64("item_id", item.ID), zap.Error(err))
	}
}

// invalidate bumps the item's version and drops the cached copy.
func (c *Items) invalidate(ctx context.Context, id int64) {
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Del(ctx, key(id))
		return nil
	})
	if err != nil {
		c.Logger.Warn("cache invalidation failed", zap.Int64("item_id", id), zap.Error(err))
	}
}
