package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLRU(maxSize int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](maxSize, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestLRU(10, 30*time.Second)

	c.Set("houses", "v1")
	got, ok := c.Get("houses")
	require.True(t, ok)
	assert.Equal(t, "v1", got)

	clk.t = clk.t.Add(29 * time.Second)
	_, ok = c.Get("houses")
	assert.True(t, ok, "fresh within the window")

	clk.t = clk.t.Add(time.Second)
	_, ok = c.Get("houses")
	assert.False(t, ok, "stale at the window edge")
	assert.Zero(t, c.Size())
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used is evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCleanExpired(t *testing.T) {
	c, clk := newTestLRU(10, time.Minute)
	c.Set("a", "1")
	c.SetWithTTL("b", "2", 10*time.Second)
	c.Set("c", "3")

	clk.t = clk.t.Add(20 * time.Second)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 2, c.Size())

	c.Delete("a")
	assert.Equal(t, 1, c.Size())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)

	_, ok, err := s.Get(ctx, "houses")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "houses", []byte(`[1]`), time.Minute))
	require.NoError(t, s.Set(ctx, "dashboard", []byte(`{}`), time.Minute))
	b, ok, err := s.Get(ctx, "houses")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1]`, string(b))

	require.NoError(t, s.Delete(ctx, "houses", "dashboard", "missing"))
	_, ok, _ = s.Get(ctx, "dashboard")
	assert.False(t, ok)
}

type countingCleaner struct{ calls int32 }

func (c *countingCleaner) CleanExpired() int {
	atomic.AddInt32(&c.calls, 1)
	return 1
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	cl := &countingCleaner{}
	m.Register(cl)

	closed := 0
	m.OnStop(func() error {
		closed++
		return nil
	})

	m.StartCleanup(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&cl.calls) > 0 }, time.Second, 5*time.Millisecond)

	m.Stop()
	m.Stop()
	assert.Equal(t, 1, closed)
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Register(&countingCleaner{})
	assert.Equal(t, 1, m.CleanNow())
	m.Stop()
}

func TestNewRedisStoreErrors(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url", "society:")
	assert.ErrorContains(t, err, "parse redis url")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = NewRedisStore(ctx, "redis://127.0.0.1:1/0", "society:")
	assert.ErrorContains(t, err, "ping redis")
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	s := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "society:")
	defer s.Close()
	assert.Equal(t, "society:houses", s.key("houses"))
	assert.NoError(t, s.Delete(context.Background()))
}
