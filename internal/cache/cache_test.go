package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/erazemk/integration-api/internal/db"
	"github.com/erazemk/integration-api/internal/model"
	"github.com/erazemk/integration-api/internal/store"
)

// countingStore records how often Get reaches the backing store.
type countingStore struct {
	*store.Items
	gets int
}

func (s *countingStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	s.gets++
	return s.Items.Get(ctx, id)
}

// unreachableRedis returns a client that fails fast on every command.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestCache(t *testing.T) (*Items, *countingStore) {
	t.Helper()
	backing := &countingStore{Items: store.NewItems(db.NewTestDB(t))}
	logger := zaptest.NewLogger(t, zaptest.Level(zap.ErrorLevel))
	return New(backing, unreachableRedis(t), logger), backing
}

// pausingStore blocks the first Get after it has read the row, until
// resume is closed.
type pausingStore struct {
	*store.Items
	once   sync.Once
	read   chan struct{}
	resume chan struct{}
}

func (s *pausingStore) Get(ctx context.Context, id int64) (*model.Item, error) {
	item, err := s.Items.Get(ctx, id)
	s.once.Do(func() {
		close(s.read)
		<-s.resume
	})
	return item, err
}

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newRedisCache(t *testing.T) (*Items, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr, client := newMiniredis(t)
	backing := &countingStore{Items: store.NewItems(db.NewTestDB(t))}
	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
	return New(backing, client, logger), backing, mr
}

func TestKey(t *testing.T) {
	if got := key(42); got != "item:42" {
		t.Errorf("key(42) = %q", got)
	}
	if got := versionKey(42); got != "item:42:v" {
		t.Errorf("versionKey(42) = %q", got)
	}
}

func TestGetServesRepeatReadsFromRedis(t *testing.T) {
	c, backing, mr := newRedisCache(t)
	ctx := context.Background()

	created, err := c.Create(ctx, model.NewItem{Name: "Laptop"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := c.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get #%d: %v", i+1, err)
		}
		if got == nil || got.Name != "Laptop" || got.ID != created.ID {
			t.Fatalf("Get #%d = %+v", i+1, got)
		}
	}
	if backing.gets != 1 {
		t.Errorf("expected 1 store read, got %d", backing.gets)
	}
	if !mr.Exists(key(created.ID)) {
		t.Errorf("expected %s to be cached", key(created.ID))
	}
}

func TestGetDoesNotCacheMissingItem(t *testing.T) {
	c, _, mr := newRedisCache(t)

	got, err := c.Get(context.Background(), 99)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil, got %+v, %v", got, err)
	}
	if mr.Exists(key(99)) {
		t.Error("missing item should not be cached")
	}
}

func TestUpdateDropsCachedItem(t *testing.T) {
	c, backing, mr := newRedisCache(t)
	ctx := context.Background()

	created, _ := c.Create(ctx, model.NewItem{Name: "Mouse"})
	if _, err := c.Get(ctx, created.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if _, err := c.Update(ctx, created.ID, model.ItemPatch{Quantity: model.Some[int64](4)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if mr.Exists(key(created.ID)) {
		t.Errorf("expected %s to be dropped after update", key(created.ID))
	}

	got, err := c.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Quantity != 4 {
		t.Errorf("expected quantity 4, got %d", got.Quantity)
	}
	if backing.gets != 2 {
		t.Errorf("expected 2 store reads, got %d", backing.gets)
	}
}

func TestEmptyPatchKeepsCachedItem(t *testing.T) {
	c, _, mr := newRedisCache(t)
	ctx := context.Background()

	created, _ := c.Create(ctx, model.NewItem{Name: "Keyboard"})
	if _, err := c.Get(ctx, created.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	before, err := mr.Get(key(created.ID))
	if err != nil {
		t.Fatalf("reading cached entry: %v", err)
	}

	if _, err := c.Update(ctx, created.ID, model.ItemPatch{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	after, err := mr.Get(key(created.ID))
	if err != nil {
		t.Fatalf("expected %s to survive an empty patch: %v", key(created.ID), err)
	}
	if after != before {
		t.Errorf("cached entry changed: %s -> %s", before, after)
	}
	if mr.Exists(versionKey(created.ID)) {
		t.Error("empty patch should not bump the version")
	}
}

func TestDeleteDropsCachedItem(t *testing.T) {
	c, _, mr := newRedisCache(t)
	ctx := context.Background()

	created, _ := c.Create(ctx, model.NewItem{Name: "Monitor"})
	if _, err := c.Get(ctx, created.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}

	removed, err := c.Delete(ctx, created.ID)
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	if mr.Exists(key(created.ID)) {
		t.Errorf("expected %s to be dropped after delete", key(created.ID))
	}

	got, err := c.Get(ctx, created.ID)
	if err != nil || got != nil {
		t.Errorf("expected deleted item to be gone, got %+v, %v", got, err)
	}
}

func TestCachedItemExpires(t *testing.T) {
	c, backing, mr := newRedisCache(t)
	ctx := context.Background()

	created, _ := c.Create(ctx, model.NewItem{Name: "Laptop"})
	if _, err := c.Get(ctx, created.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ttl := mr.TTL(key(created.ID)); ttl != DefaultTTL {
		t.Errorf("expected TTL %v, got %v", DefaultTTL, ttl)
	}

	mr.FastForward(DefaultTTL)
	if mr.Exists(key(created.ID)) {
		t.Fatalf("expected %s to expire", key(created.ID))
	}

	if _, err := c.Get(ctx, created.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if backing.gets != 2 {
		t.Errorf("expected expired entry to force a store read, got %d reads", backing.gets)
	}
}

// getDuringWrite starts a Get, runs write while the Get is parked between
// its store read and the cache fill, then lets the Get finish.
func getDuringWrite(t *testing.T, write func(c *Items, id int64)) (*Items, *miniredis.Miniredis, int64) {
	t.Helper()
	mr, client := newMiniredis(t)
	backing := &pausingStore{
		Items:  store.NewItems(db.NewTestDB(t)),
		read:   make(chan struct{}),
		resume: make(chan struct{}),
	}
	c := New(backing, client, zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)))
	ctx := context.Background()

	created, err := c.Create(ctx, model.NewItem{Name: "Laptop"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, created.ID)
		done <- err
	}()

	<-backing.read
	write(c, created.ID)
	close(backing.resume)

	if err := <-done; err != nil {
		t.Fatalf("Get: %v", err)
	}
	return c, mr, created.ID
}

func TestDeleteDuringGetIsNotCached(t *testing.T) {
	c, mr, id := getDuringWrite(t, func(c *Items, id int64) {
		removed, err := c.Delete(context.Background(), id)
		if err != nil || !removed {
			t.Errorf("Delete: removed=%v err=%v", removed, err)
		}
	})

	if mr.Exists(key(id)) {
		t.Errorf("deleted item was cached under %s", key(id))
	}
	got, err := c.Get(context.Background(), id)
	if err != nil || got != nil {
		t.Errorf("deleted item still served: %+v, %v", got, err)
	}
}

func TestUpdateDuringGetIsNotCached(t *testing.T) {
	c, mr, id := getDuringWrite(t, func(c *Items, id int64) {
		patch := model.ItemPatch{Name: model.Some("Laptop Pro")}
		if _, err := c.Update(context.Background(), id, patch); err != nil {
			t.Errorf("Update: %v", err)
		}
	})

	if mr.Exists(key(id)) {
		t.Errorf("stale item was cached under %s", key(id))
	}
	got, err := c.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Name != "Laptop Pro" {
		t.Errorf("expected updated name, got %+v", got)
	}
}

func TestGetFallsBackToStoreWhenRedisIsDown(t *testing.T) {
	c, backing := newTestCache(t)
	ctx := context.Background()

	created, err := c.Create(ctx, model.NewItem{Name: "Laptop"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := c.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Name != "Laptop" {
		t.Fatalf("expected Laptop, got %+v", got)
	}
	if backing.gets != 1 {
		t.Errorf("expected 1 store read, got %d", backing.gets)
	}

	missing, err := c.Get(ctx, created.ID+100)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing item, got %+v, %v", missing, err)
	}
}

func TestWritesSucceedWhenRedisIsDown(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	created, _ := c.Create(ctx, model.NewItem{Name: "Mouse"})

	updated, err := c.Update(ctx, created.ID, model.ItemPatch{Quantity: model.Some[int64](9)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Quantity != 9 {
		t.Errorf("expected quantity 9, got %d", updated.Quantity)
	}

	removed, err := c.Delete(ctx, created.ID)
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}

	items, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list, got %d items", len(items))
	}
}

func TestConnectFailsForUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := Connect(ctx, "127.0.0.1:1"); err == nil {
		t.Error("expected error connecting to unreachable redis")
	}
}
