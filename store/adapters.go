package store

import (
	"context"

	storeadapter "github.com/karupanerura/store-adapter"
)

// Op names a store operation reported to ErrorHookStore.OnError.
type Op string

const (
	OpLoadCache  Op = "LoadCache"
	OpLoad       Op = "Load"
	OpLoadAll    Op = "LoadAll"
	OpWrite      Op = "Write"
	OpWriteAll   Op = "WriteAll"
	OpDelete     Op = "Delete"
	OpDeleteAll  Op = "DeleteAll"
	OpSessionEnd Op = "SessionEnd"
)

var _ storeadapter.CacheStore[uint8, struct{}] = (*ErrorHookStore[uint8, struct{}])(nil)

// ErrorHookStore is a decorator for a storeadapter.CacheStore that reports the errors of every
// operation to the provided OnError function. The errors are returned to the caller unchanged.
type ErrorHookStore[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	// Store is the underlying store that this decorator wraps.
	Store storeadapter.CacheStore[K, V]

	// OnError is a function that is called when an operation fails.
	// For batch operations it receives the joined errors of the failed items.
	OnError func(ctx context.Context, op Op, err error)
}

func (s *ErrorHookStore[K, V]) hook(ctx context.Context, op Op, err error) error {
	if err != nil && s.OnError != nil {
		s.OnError(ctx, op, err)
	}
	return err
}

// LoadCache loads the cache through the underlying store.
func (s *ErrorHookStore[K, V]) LoadCache(ctx context.Context, sink storeadapter.Sink[K, V], args ...any) error {
	return s.hook(ctx, OpLoadCache, s.Store.LoadCache(ctx, sink, args...))
}

// Load retrieves a value from the underlying store.
func (s *ErrorHookStore[K, V]) Load(ctx context.Context, key K) (*storeadapter.Entry[K, V], error) {
	entry, err := s.Store.Load(ctx, key)
	return entry, s.hook(ctx, OpLoad, err)
}

// LoadAll retrieves values from the underlying store.
func (s *ErrorHookStore[K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	m, err := s.Store.LoadAll(ctx, keys)
	return m, s.hook(ctx, OpLoadAll, err)
}

// Write writes a value to the underlying store.
func (s *ErrorHookStore[K, V]) Write(ctx context.Context, key K, value V) error {
	return s.hook(ctx, OpWrite, s.Store.Write(ctx, key, value))
}

// WriteAll writes entries to the underlying store.
func (s *ErrorHookStore[K, V]) WriteAll(ctx context.Context, entries []storeadapter.Entry[K, V]) storeadapter.BatchResult[storeadapter.Entry[K, V]] {
	result := s.Store.WriteAll(ctx, entries)
	_ = s.hook(ctx, OpWriteAll, result.Err())
	return result
}

// Delete deletes a key from the underlying store.
func (s *ErrorHookStore[K, V]) Delete(ctx context.Context, key K) error {
	return s.hook(ctx, OpDelete, s.Store.Delete(ctx, key))
}

// DeleteAll deletes keys from the underlying store.
func (s *ErrorHookStore[K, V]) DeleteAll(ctx context.Context, keys []K) storeadapter.BatchResult[K] {
	result := s.Store.DeleteAll(ctx, keys)
	_ = s.hook(ctx, OpDeleteAll, result.Err())
	return result
}

// SessionEnd ends the session of the underlying store.
func (s *ErrorHookStore[K, V]) SessionEnd(ctx context.Context, commit bool) error {
	return s.hook(ctx, OpSessionEnd, s.Store.SessionEnd(ctx, commit))
}
