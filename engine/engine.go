package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/internal/ctxsync"
	"github.com/karupanerura/store-adapter/store"
	"github.com/karupanerura/store-adapter/store/memstore"
)

// slot is a cached value. A zero expiresAt never expires.
type slot[V storeadapter.ValueConstraint] struct {
	value     V
	expiresAt time.Time
}

// Engine is an in-memory cache backed by a store.
type Engine[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	store   storeadapter.CacheStore[K, V]
	local   *memstore.Store[K, slot[V]]
	loader  *readThrough[K, V]
	options options[K, V]

	// lock serializes the calls to the store.
	lock ctxsync.Mutex

	mu      sync.Mutex
	touched map[K]struct{}
}

// New creates an engine for the store.
func New[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](s storeadapter.CacheStore[K, V], opts ...Option[K, V]) *Engine[K, V] {
	o := defaultOptions[K, V]()
	for _, opt := range opts {
		opt.apply(&o)
	}

	e := &Engine[K, V]{
		local:   memstore.New(o.localOptions()...),
		options: o,
		touched: map[K]struct{}{},
	}
	e.store = &store.ErrorHookStore[K, V]{
		Store: s,
		OnError: func(ctx context.Context, op store.Op, err error) {
			e.options.logger.WarnContext(ctx, "store operation failed", slog.String("op", string(op)), slog.Any("error", err))
		},
	}
	e.loader = newReadThrough(e)
	return e
}

// call runs f while holding the store lock.
func (e *Engine[K, V]) call(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.lock.LockCtx(ctx); err != nil {
		return err
	}
	defer e.lock.Unlock()
	return f()
}

// cache stores the value in the local map, ignoring the cancellation of ctx.
func (e *Engine[K, V]) cache(ctx context.Context, key K, value V) {
	s := slot[V]{value: value}
	if e.options.ttl > 0 {
		s.expiresAt = e.options.clock.Now().Add(e.options.ttl)
	}
	_ = e.local.Write(context.WithoutCancel(ctx), key, s)
}

func (e *Engine[K, V]) evict(keys ...K) {
	for _, key := range keys {
		_ = e.local.Delete(context.Background(), key)
	}
}

func (e *Engine[K, V]) touch(keys ...K) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, key := range keys {
		e.touched[key] = struct{}{}
	}
}

// cached returns the cached value of the key. An expired entry is evicted and reported as missing.
func (e *Engine[K, V]) cached(ctx context.Context, key K) (V, bool) {
	var zero V
	entry, _ := e.local.Load(ctx, key)
	if entry == nil {
		return zero, false
	}
	if s := entry.Value; !s.expiresAt.IsZero() && e.options.policy.IsExpired(e.options.clock.Now(), s.expiresAt) {
		e.evict(key)
		return zero, false
	}
	return entry.Value.value, true
}

// Preload loads every entry of the store into the cache.
// The args are passed to the store unmodified.
func (e *Engine[K, V]) Preload(ctx context.Context, args ...any) error {
	start := time.Now()
	var (
		mu     sync.Mutex
		loaded int
	)
	err := e.call(ctx, func() error {
		return e.store.LoadCache(ctx, func(ctx context.Context, key K, value V) error {
			e.cache(ctx, key, value)
			mu.Lock()
			loaded++
			mu.Unlock()
			return nil
		}, args...)
	})
	e.options.logger.LogAttrs(ctx, slog.LevelDebug, "preload finished",
		slog.Int("loaded", loaded),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil),
	)
	return err
}

// Get returns the entry of the key, loading it from the store on a miss.
// It returns nil if the store has no value for the key.
func (e *Engine[K, V]) Get(ctx context.Context, key K) (*storeadapter.Entry[K, V], error) {
	if v, ok := e.cached(ctx, key); ok {
		return &storeadapter.Entry[K, V]{Key: key, Value: e.options.cloner.CloneValue(v)}, nil
	}
	return e.loader.load(ctx, key)
}

// GetAll returns the values of the keys, loading the missing ones from the store.
// Keys without a value are omitted.
func (e *Engine[K, V]) GetAll(ctx context.Context, keys []K) (map[K]V, error) {
	m := make(map[K]V, len(keys))
	seen := make(map[K]struct{}, len(keys))
	var missing []K
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if v, ok := e.cached(ctx, key); ok {
			m[key] = e.options.cloner.CloneValue(v)
		} else {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return m, nil
	}

	entries, err := e.loader.loadMulti(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry != nil {
			m[entry.Key] = entry.Value
		}
	}
	return m, nil
}

// fetch loads the keys from the store and caches the found values.
// It falls back to Load for each key when LoadAll returns nil.
func (e *Engine[K, V]) fetch(ctx context.Context, keys []K) (map[K]V, error) {
	var found map[K]V
	err := e.call(ctx, func() error {
		if len(keys) == 1 {
			entry, err := e.store.Load(ctx, keys[0])
			if err != nil {
				return err
			}
			found = map[K]V{}
			if entry != nil {
				found[entry.Key] = entry.Value
			}
			return nil
		}

		var err error
		found, err = e.store.LoadAll(ctx, keys)
		if err != nil || found != nil {
			return err
		}

		found = make(map[K]V, len(keys))
		for _, key := range keys {
			entry, err := e.store.Load(ctx, key)
			if err != nil {
				return err
			}
			if entry != nil {
				found[key] = entry.Value
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for key, value := range found {
		e.cache(ctx, key, value)
	}
	return found, nil
}

// Put writes the value to the store and then caches it.
// If the write fails, the key is evicted from the cache.
func (e *Engine[K, V]) Put(ctx context.Context, key K, value V) error {
	if err := e.call(ctx, func() error {
		return e.store.Write(ctx, key, value)
	}); err != nil {
		e.evict(key)
		return err
	}
	e.touch(key)
	e.cache(ctx, key, value)
	return nil
}

// PutAll writes the entries to the store and caches the written ones.
// The entries that could not be written are retried. If some remain after the last attempt,
// it returns a *BatchError holding them and evicts their keys from the cache.
func (e *Engine[K, V]) PutAll(ctx context.Context, entries []storeadapter.Entry[K, V]) error {
	remaining, err := retryBatch(ctx, e, "PutAll", entries, func(batch []storeadapter.Entry[K, V]) storeadapter.BatchResult[storeadapter.Entry[K, V]] {
		result := e.store.WriteAll(ctx, batch)
		for _, entry := range result.Succeeded {
			e.touch(entry.Key)
			e.cache(ctx, entry.Key, entry.Value)
		}
		return result
	})
	if err != nil {
		for _, entry := range remaining {
			e.evict(entry.Key)
		}
		return &BatchError[storeadapter.Entry[K, V]]{Remaining: remaining, Err: err}
	}
	return nil
}

// Remove deletes the key from the store and then from the cache.
func (e *Engine[K, V]) Remove(ctx context.Context, key K) error {
	if err := e.call(ctx, func() error {
		return e.store.Delete(ctx, key)
	}); err != nil {
		return err
	}
	e.touch(key)
	e.evict(key)
	return nil
}

// RemoveAll deletes the keys from the store and then from the cache.
// The keys that could not be deleted are retried. If some remain after the last attempt,
// it returns a *BatchError holding them; they stay in the cache.
func (e *Engine[K, V]) RemoveAll(ctx context.Context, keys []K) error {
	remaining, err := retryBatch(ctx, e, "RemoveAll", keys, func(batch []K) storeadapter.BatchResult[K] {
		result := e.store.DeleteAll(ctx, batch)
		e.touch(result.Succeeded...)
		e.evict(result.Succeeded...)
		return result
	})
	if err != nil {
		return &BatchError[K]{Remaining: remaining, Err: err}
	}
	return nil
}

// retryBatch runs the batch until nothing remains, retrying exactly the remaining items.
// It returns the items that still remain when it gives up.
func retryBatch[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint, T any](ctx context.Context, e *Engine[K, V], op string, items []T, run func([]T) storeadapter.BatchResult[T]) ([]T, error) {
	remaining := items
	if len(remaining) == 0 {
		return nil, nil
	}

	err := retry.Do(
		func() error {
			var result storeadapter.BatchResult[T]
			if err := e.call(ctx, func() error {
				result = run(remaining)
				return nil
			}); err != nil {
				return err
			}

			remaining = result.Remaining()
			if len(remaining) == 0 {
				return nil
			}
			if err := result.Err(); err != nil {
				return err
			}
			return errIncomplete
		},
		retry.Context(ctx),
		retry.Attempts(e.options.retryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(e.options.retryDelay),
		retry.MaxDelay(e.options.retryMaxDelay),
		retry.OnRetry(func(n uint, err error) {
			e.options.logger.WarnContext(ctx, "batch attempt failed",
				slog.String("op", op),
				slog.Uint64("attempt", uint64(n+1)),
				slog.Int("remaining", len(remaining)),
				slog.Any("error", err),
			)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return remaining, err
	}
	return nil, nil
}

// Commit makes the changes of the current session of the store durable.
func (e *Engine[K, V]) Commit(ctx context.Context) error {
	if err := e.call(ctx, func() error {
		return e.store.SessionEnd(ctx, true)
	}); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.touched)
	return nil
}

// Rollback discards the changes of the current session of the store.
// The keys changed in the session are evicted from the cache, even if the store fails to end the session.
func (e *Engine[K, V]) Rollback(ctx context.Context) error {
	err := e.call(ctx, func() error {
		return e.store.SessionEnd(ctx, false)
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.touched {
		e.evict(key)
	}
	clear(e.touched)
	return err
}

// Len returns the number of cached entries, including the expired ones not evicted yet.
func (e *Engine[K, V]) Len() int {
	return e.local.Len()
}
