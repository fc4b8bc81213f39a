package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"society/internal/activity"
	"society/internal/backend/memory"
	"society/internal/cache"
	"society/internal/config"
	"society/internal/core"
	applog "society/internal/log"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestCacheStoreFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{CacheCleanupInterval: time.Minute}
	store, manager := CacheStore(context.Background(), quietLogger(), cfg)
	defer manager.Stop()

	_, ok := store.(*cache.MemoryStore)
	assert.True(t, ok, "expected a memory store, got %T", store)
}

func TestCacheStoreUnreachableRedis(t *testing.T) {
	cfg := &config.Config{
		RedisURL:             "redis://127.0.0.1:1/0",
		CacheCleanupInterval: time.Minute,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, manager := CacheStore(ctx, quietLogger(), cfg)
	defer manager.Stop()

	_, ok := store.(*cache.MemoryStore)
	assert.True(t, ok, "expected fallback to memory store, got %T", store)
}

func TestPublisherWithoutBrokerRecordsInProcess(t *testing.T) {
	client := memory.New()
	recorder := activity.NewRecorder(client)

	pub, closeFn := Publisher(quietLogger(), &config.Config{}, recorder)
	require.NoError(t, closeFn())

	ctx := context.Background()
	require.NoError(t, pub.Publish(ctx, activity.New(ctx, activity.ActionCreate, core.TableHouses, "h1", nil)))
	assert.Equal(t, 1, client.Len(core.TableActivityLogs))
}
