// Package query contains read operations (CQRS - Queries).
package query

import "context"

// AggregateCache is an optional read-through cache for aggregate results.
// Load returns the generation it observed; Store must be given that same
// generation so a value computed before a concurrent write is never served
// after it.
type AggregateCache interface {
	Load(ctx context.Context, studentID, name string, dest any) (int64, bool)
	Store(ctx context.Context, studentID string, generation int64, name string, value any)
}

// cached returns the cached aggregate or computes and caches it. A nil cache
// always computes.
func cached[T any](ctx context.Context, cache AggregateCache, studentID, name string, compute func() (T, error)) (T, error) {
	if cache == nil {
		return compute()
	}
	var hit T
	gen, ok := cache.Load(ctx, studentID, name, &hit)
	if ok {
		return hit, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	cache.Store(ctx, studentID, gen, name, v)
	return v, nil
}
