package source

import (
	"context"
	"iter"

	storeadapter "github.com/karupanerura/store-adapter"
)

// FunctionsStore is a store that uses functions for its operations.
// InputDataFunc and ParseFunc are required. The other functions are optional:
// an unset function behaves like the default of storeadapter.Adapter.
type FunctionsStore[R any, K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	// InputDataFunc returns the raw records to load.
	InputDataFunc func(context.Context) iter.Seq2[R, error]

	// ParseFunc transforms a raw record into an entry.
	// It should return nil as *Entry to skip the record.
	ParseFunc func(context.Context, R, ...any) (*storeadapter.Entry[K, V], error)

	// LoadFunc loads a value by key. It should return nil as *Entry if the value cannot be loaded.
	LoadFunc func(context.Context, K) (*storeadapter.Entry[K, V], error)

	// LoadAllFunc loads values by keys. Keys that cannot be loaded should be omitted.
	LoadAllFunc func(context.Context, []K) (map[K]V, error)

	// WriteFunc writes a value.
	WriteFunc func(context.Context, K, V) error

	// WriteAllFunc writes values. If unset, WriteFunc is called for each entry.
	WriteAllFunc func(context.Context, []storeadapter.Entry[K, V]) storeadapter.BatchResult[storeadapter.Entry[K, V]]

	// DeleteFunc deletes a key.
	DeleteFunc func(context.Context, K) error

	// DeleteAllFunc deletes keys. If unset, DeleteFunc is called for each key.
	DeleteAllFunc func(context.Context, []K) storeadapter.BatchResult[K]

	// SessionEndFunc ends the current session.
	SessionEndFunc func(context.Context, bool) error
}

var (
	_ storeadapter.BulkSource[uint8, uint8, struct{}] = (*FunctionsStore[uint8, uint8, struct{}])(nil)
	_ storeadapter.Loader[uint8, struct{}]            = (*FunctionsStore[uint8, uint8, struct{}])(nil)
	_ storeadapter.MultiLoader[uint8, struct{}]       = (*FunctionsStore[uint8, uint8, struct{}])(nil)
	_ storeadapter.MultiWriter[uint8, struct{}]       = (*FunctionsStore[uint8, uint8, struct{}])(nil)
	_ storeadapter.MultiDeleter[uint8]                = (*FunctionsStore[uint8, uint8, struct{}])(nil)
	_ storeadapter.SessionEnder                       = (*FunctionsStore[uint8, uint8, struct{}])(nil)
)

// InputData calls the InputDataFunc function.
func (s *FunctionsStore[R, K, V]) InputData(ctx context.Context) iter.Seq2[R, error] {
	return s.InputDataFunc(ctx)
}

// Parse calls the ParseFunc function.
func (s *FunctionsStore[R, K, V]) Parse(ctx context.Context, record R, args ...any) (*storeadapter.Entry[K, V], error) {
	return s.ParseFunc(ctx, record, args...)
}

// Load calls the LoadFunc function if set.
func (s *FunctionsStore[R, K, V]) Load(ctx context.Context, key K) (*storeadapter.Entry[K, V], error) {
	if s.LoadFunc == nil {
		return nil, nil
	}
	return s.LoadFunc(ctx, key)
}

// LoadAll calls the LoadAllFunc function if set.
func (s *FunctionsStore[R, K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	if s.LoadAllFunc == nil {
		return nil, nil
	}
	return s.LoadAllFunc(ctx, keys)
}

// Write calls the WriteFunc function if set.
func (s *FunctionsStore[R, K, V]) Write(ctx context.Context, key K, value V) error {
	if s.WriteFunc == nil {
		return nil
	}
	return s.WriteFunc(ctx, key, value)
}

// WriteAll calls the WriteAllFunc function if set, or the WriteFunc function for each entry.
func (s *FunctionsStore[R, K, V]) WriteAll(ctx context.Context, entries []storeadapter.Entry[K, V]) storeadapter.BatchResult[storeadapter.Entry[K, V]] {
	if s.WriteAllFunc != nil {
		return s.WriteAllFunc(ctx, entries)
	}
	return storeadapter.Each(ctx, entries, func(ctx context.Context, e storeadapter.Entry[K, V]) error {
		return s.Write(ctx, e.Key, e.Value)
	})
}

// Delete calls the DeleteFunc function if set.
func (s *FunctionsStore[R, K, V]) Delete(ctx context.Context, key K) error {
	if s.DeleteFunc == nil {
		return nil
	}
	return s.DeleteFunc(ctx, key)
}

// DeleteAll calls the DeleteAllFunc function if set, or the DeleteFunc function for each key.
func (s *FunctionsStore[R, K, V]) DeleteAll(ctx context.Context, keys []K) storeadapter.BatchResult[K] {
	if s.DeleteAllFunc != nil {
		return s.DeleteAllFunc(ctx, keys)
	}
	return storeadapter.Each(ctx, keys, s.Delete)
}

// SessionEnd calls the SessionEndFunc function if set.
func (s *FunctionsStore[R, K, V]) SessionEnd(ctx context.Context, commit bool) error {
	if s.SessionEndFunc == nil {
		return nil
	}
	return s.SessionEndFunc(ctx, commit)
}

// LintSource is a bulk source that is used for linting purposes.
// It validates the behavior of the wrapped source, panicking when the contract is broken.
type LintSource[R any, K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	Source storeadapter.BulkSource[R, K, V]
}

var _ storeadapter.BulkSource[uint8, uint8, struct{}] = (*LintSource[uint8, uint8, struct{}])(nil)

// InputData returns the records of the source.
// It checks that the sequence is not nil and that it is iterated only once.
func (s *LintSource[R, K, V]) InputData(ctx context.Context) iter.Seq2[R, error] {
	seq := s.Source.InputData(ctx)
	if seq == nil {
		panic("input data must not be nil")
	}

	iterated := false
	return func(yield func(R, error) bool) {
		if iterated {
			panic("input data must be iterated only once")
		}
		iterated = true
		seq(yield)
	}
}

// Parse parses the record with the source.
// It checks that an error is never returned together with an entry.
func (s *LintSource[R, K, V]) Parse(ctx context.Context, record R, args ...any) (*storeadapter.Entry[K, V], error) {
	entry, err := s.Source.Parse(ctx, record, args...)
	if err != nil && entry != nil {
		panic("entry must be nil when an error is returned")
	}
	return entry, err
}
