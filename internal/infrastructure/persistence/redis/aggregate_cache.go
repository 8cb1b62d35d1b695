package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/campus-records/records-core/pkg/circuitbreaker"
)

// backend is the part of Cache the aggregate cache needs.
type backend interface {
	GetInt64(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	IncrAll(ctx context.Context, ttl time.Duration, keys ...string) error
}

// AggregateCache caches query results per student. Every key embeds the
// student's current generation; a committed write bumps the generation, so
// values computed before it are never read again and simply expire.
//
// When a bump fails the student is marked stale in this process for one
// TTL: every value cached before the failure has expired by then, and until
// then Load misses and Store is skipped for that student.
type AggregateCache struct {
	cache   backend
	ttl     time.Duration
	logger  *slog.Logger
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time

	mu    sync.Mutex
	stale map[string]time.Time
}

// AggregateCacheOption configures an AggregateCache.
type AggregateCacheOption func(*AggregateCache)

// WithBreaker routes reads and writes through b. While it is open, lookups
// are misses that never reach Redis. Invalidation always goes to Redis.
func WithBreaker(b *circuitbreaker.CircuitBreaker) AggregateCacheOption {
	return func(c *AggregateCache) { c.breaker = b }
}

// NewAggregateCache creates an AggregateCache. A non-positive ttl uses
// TTLAggregate.
func NewAggregateCache(cache *Cache, ttl time.Duration, logger *slog.Logger, opts ...AggregateCacheOption) *AggregateCache {
	return newAggregateCache(cache, ttl, logger, opts...)
}

func newAggregateCache(cache backend, ttl time.Duration, logger *slog.Logger, opts ...AggregateCacheOption) *AggregateCache {
	if ttl <= 0 {
		ttl = TTLAggregate
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &AggregateCache{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "aggregate_cache")),
		now:    time.Now,
		stale:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsCacheFailure reports whether err means Redis is unhealthy. Misses are not.
func IsCacheFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrCacheMiss)
}

func (c *AggregateCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

// GenerationKey returns the counter key of a student.
func GenerationKey(studentID string) string {
	return PrefixGeneration + studentID
}

// AggregateKey returns the key of one cached aggregate at a generation.
func AggregateKey(studentID string, generation int64, name string) string {
	return PrefixAggregate + studentID + ":" + strconv.FormatInt(generation, 10) + ":" + name
}

// Load reads a cached aggregate into dest and returns the generation it
// observed. Pass that generation to Store so a value computed from data read
// before a concurrent write lands under the old generation. A negative
// generation means Redis failed and nothing should be stored; failures are
// logged and treated as misses so reads fall back to the store.
func (c *AggregateCache) Load(ctx context.Context, studentID, name string, dest any) (int64, bool) {
	if c.isStale(studentID) {
		return -1, false
	}
	var gen int64
	err := c.guard(ctx, func(ctx context.Context) error {
		var err error
		gen, err = c.cache.GetInt64(ctx, GenerationKey(studentID))
		return err
	})
	if circuitbreaker.IsRejected(err) {
		return -1, false
	}
	if err != nil {
		c.logger.Warn("generation read failed", "student_id", studentID, "error", err)
		return -1, false
	}
	err = c.guard(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, AggregateKey(studentID, gen, name), dest)
	})
	if err == nil {
		return gen, true
	}
	if IsCacheFailure(err) && !circuitbreaker.IsRejected(err) {
		c.logger.Warn("aggregate read failed", "student_id", studentID, "name", name, "error", err)
	}
	return gen, false
}

// Store caches an aggregate under the generation returned by Load.
func (c *AggregateCache) Store(ctx context.Context, studentID string, generation int64, name string, value any) {
	if generation < 0 || c.isStale(studentID) {
		return
	}
	err := c.guard(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, AggregateKey(studentID, generation, name), value, c.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) {
		c.logger.Warn("aggregate write failed", "student_id", studentID, "name", name, "error", err)
	}
}

// InvalidateStudents bumps the generation of every student. On failure the
// students stay stale for one TTL and the error is returned.
func (c *AggregateCache) InvalidateStudents(ctx context.Context, studentIDs ...string) error {
	keys := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		keys = append(keys, GenerationKey(id))
	}
	if err := c.cache.IncrAll(ctx, TTLGeneration, keys...); err != nil {
		c.markStale(studentIDs)
		c.logger.Warn("generation bump failed, caching suspended for students",
			"student_ids", studentIDs, "for", c.ttl, "error", err)
		return err
	}
	c.clearStale(studentIDs)
	return nil
}

func (c *AggregateCache) markStale(studentIDs []string) {
	until := c.now().Add(c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range studentIDs {
		c.stale[id] = until
	}
}

// clearStale forgets students whose generation was bumped: everything cached
// before the bump is now unreachable.
func (c *AggregateCache) clearStale(studentIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range studentIDs {
		delete(c.stale, id)
	}
}

func (c *AggregateCache) isStale(studentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.stale[studentID]
	if !ok {
		return false
	}
	if !c.now().Before(until) {
		delete(c.stale, studentID)
		return false
	}
	return true
}
