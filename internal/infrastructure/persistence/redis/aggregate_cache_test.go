package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/campus-records/records-core/pkg/circuitbreaker"
	"github.com/campus-records/records-core/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "records:gen:s1", GenerationKey("s1"))
	assert.Equal(t, "records:agg:s1:3:gpa:FALL:2023-2024", AggregateKey("s1", 3, "gpa:FALL:2023-2024"))
}

func TestConfigAddr(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())
}

// newTestCache connects to RECORDS_TEST_REDIS_ADDR or skips.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("RECORDS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RECORDS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(context.Background()).Err())
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client)
}

func TestAggregateCache_InvalidationHidesOldValues(t *testing.T) {
	ctx := context.Background()
	ac := NewAggregateCache(newTestCache(t), 0, nil)

	var got map[string]string
	gen, ok := ac.Load(ctx, "s1", "balance", &got)
	require.False(t, ok)
	assert.Equal(t, int64(0), gen)

	ac.Store(ctx, "s1", gen, "balance", map[string]string{"total": "300"})

	gen, ok = ac.Load(ctx, "s1", "balance", &got)
	require.True(t, ok)
	assert.Equal(t, "300", got["total"])

	require.NoError(t, ac.InvalidateStudents(ctx, "s1"))

	got = nil
	gen2, ok := ac.Load(ctx, "s1", "balance", &got)
	assert.False(t, ok)
	assert.Equal(t, gen+1, gen2)
}

func TestAggregateCache_StaleStoreIsInvisible(t *testing.T) {
	ctx := context.Background()
	ac := NewAggregateCache(newTestCache(t), 0, nil)

	var got string
	gen, _ := ac.Load(ctx, "s2", "gpa", &got)

	// A write commits while the reader is still computing.
	require.NoError(t, ac.InvalidateStudents(ctx, "s2"))
	ac.Store(ctx, "s2", gen, "gpa", "stale")

	_, ok := ac.Load(ctx, "s2", "gpa", &got)
	assert.False(t, ok)
}

func TestAggregateCache_OpenBreakerSkipsRedis(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	breaker := circuitbreaker.New("cache", circuitbreaker.WithFailureThreshold(1), circuitbreaker.WithIsFailure(IsCacheFailure))
	ac := NewAggregateCache(NewCacheFromClient(client), 0, logger.Discard(), WithBreaker(breaker))

	var got string
	gen, ok := ac.Load(ctx, "s3", "gpa", &got)
	assert.False(t, ok)
	assert.Equal(t, int64(-1), gen)
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	gen, ok = ac.Load(ctx, "s3", "gpa", &got)
	assert.False(t, ok)
	assert.Equal(t, int64(-1), gen)
	assert.Equal(t, 1, breaker.Counts().Rejected)

	ac.Store(ctx, "s3", 0, "gpa", "x")
	assert.Equal(t, 2, breaker.Counts().Rejected)
}

func TestIsCacheFailure(t *testing.T) {
	assert.False(t, IsCacheFailure(nil))
	assert.False(t, IsCacheFailure(ErrCacheMiss))
	assert.True(t, IsCacheFailure(ErrCacheSerialization))
}

// memoryBackend is an in-process stand-in for Redis with a switchable
// failure on generation bumps.
type memoryBackend struct {
	mu       sync.Mutex
	values   map[string][]byte
	counters map[string]int64
	failIncr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{values: map[string][]byte{}, counters: map[string]int64{}}
}

func (m *memoryBackend) GetInt64(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

func (m *memoryBackend) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.values[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = data
	return nil
}

func (m *memoryBackend) IncrAll(_ context.Context, _ time.Duration, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIncr != nil {
		return m.failIncr
	}
	for _, k := range keys {
		m.counters[k]++
	}
	return nil
}

func TestAggregateCache_FailedInvalidationSuspendsCaching(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	ac := newAggregateCache(backend, time.Minute, logger.Discard())
	clock := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	ac.now = func() time.Time { return clock }

	var got string
	gen, ok := ac.Load(ctx, "s4", "balance", &got)
	require.False(t, ok)
	ac.Store(ctx, "s4", gen, "balance", "300")
	_, ok = ac.Load(ctx, "s4", "balance", &got)
	require.True(t, ok)

	// A write commits but the generation bump fails.
	backend.failIncr = errors.New("connection reset")
	require.Error(t, ac.InvalidateStudents(ctx, "s4"))

	got = ""
	gen, ok = ac.Load(ctx, "s4", "balance", &got)
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.Equal(t, int64(-1), gen)

	ac.Store(ctx, "s4", 0, "balance", "stale")
	backend.failIncr = nil
	clock = clock.Add(30 * time.Second)
	_, ok = ac.Load(ctx, "s4", "balance", &got)
	assert.False(t, ok, "still suspended inside the TTL")

	// Other students keep their cache.
	gen, _ = ac.Load(ctx, "s5", "balance", &got)
	ac.Store(ctx, "s5", gen, "balance", "10")
	_, ok = ac.Load(ctx, "s5", "balance", &got)
	assert.True(t, ok)

	clock = clock.Add(31 * time.Second)
	got = ""
	gen, _ = ac.Load(ctx, "s4", "balance", &got)
	assert.Equal(t, int64(0), gen, "suspension ends after one TTL")
	assert.NotEqual(t, "stale", got, "stores during suspension are dropped")
}

func TestAggregateCache_SuccessfulInvalidationClearsSuspension(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	ac := newAggregateCache(backend, time.Minute, logger.Discard())

	backend.failIncr = errors.New("timeout")
	require.Error(t, ac.InvalidateStudents(ctx, "s6"))

	var got string
	_, ok := ac.Load(ctx, "s6", "gpa", &got)
	require.False(t, ok)

	backend.failIncr = nil
	require.NoError(t, ac.InvalidateStudents(ctx, "s6"))

	gen, _ := ac.Load(ctx, "s6", "gpa", &got)
	assert.Equal(t, int64(1), gen)
	ac.Store(ctx, "s6", gen, "gpa", "80.00")
	_, ok = ac.Load(ctx, "s6", "gpa", &got)
	assert.True(t, ok)
	assert.Equal(t, "80.00", got)
}
