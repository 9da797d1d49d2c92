package storeadapter

import (
	"context"
	"iter"
)

// KeyConstraint is an interface for key constraints.
type KeyConstraint interface {
	comparable
}

// ValueConstraint is an interface for value constraints.
type ValueConstraint interface {
	any
}

// Entry is a key-value pair.
type Entry[K KeyConstraint, V ValueConstraint] struct {
	// Key is the key of the entry.
	Key K

	// Value is the value associated with the key.
	Value V
}

// Sink receives the entries produced by a bulk load and inserts them into the cache.
// It is supplied by the cache engine. It may be called from multiple goroutines at once.
// A non-nil error aborts the load.
type Sink[K KeyConstraint, V ValueConstraint] func(ctx context.Context, key K, value V) error

// RecordSource produces the raw input records for a bulk load.
type RecordSource[R any] interface {
	// InputData returns the sequence of raw records.
	// The sequence is iterated at most once per load. Any resource it holds must be
	// acquired when the iteration starts and released when the iteration function returns.
	// A non-nil error aborts the load.
	InputData(context.Context) iter.Seq2[R, error]
}

// Parser transforms raw records into cache entries.
// Implementations must be thread-safe.
type Parser[R any, K KeyConstraint, V ValueConstraint] interface {
	// Parse transforms a raw record into an entry.
	// The args are passed through unmodified from the LoadCache call.
	// If the record should not be loaded, it should return nil as the Entry.
	Parse(ctx context.Context, record R, args ...any) (*Entry[K, V], error)
}

// BulkSource is the pair of capabilities required to bulk-load a cache.
type BulkSource[R any, K KeyConstraint, V ValueConstraint] interface {
	RecordSource[R]
	Parser[R, K, V]
}

// Loader is an optional capability for read-through of a single key.
type Loader[K KeyConstraint, V ValueConstraint] interface {
	// Load retrieves a value by its key from the backing store.
	// If the value cannot be loaded, it should return nil as the Entry.
	Load(context.Context, K) (*Entry[K, V], error)
}

// MultiLoader is an optional capability for read-through of multiple keys.
type MultiLoader[K KeyConstraint, V ValueConstraint] interface {
	// LoadAll retrieves values by keys from the backing store.
	// Keys without a loadable value are omitted from the result.
	// A nil result means that nothing was found or that the caller should fall back to Load.
	LoadAll(context.Context, []K) (map[K]V, error)
}

// Writer is an optional capability for write-through of a single entry.
type Writer[K KeyConstraint, V ValueConstraint] interface {
	// Write inserts or updates the value for the key in the backing store.
	Write(context.Context, K, V) error
}

// MultiWriter is an optional capability for write-through of multiple entries.
type MultiWriter[K KeyConstraint, V ValueConstraint] interface {
	// WriteAll writes the entries to the backing store in any order.
	// Every entry must be reported exactly once in the result.
	WriteAll(context.Context, []Entry[K, V]) BatchResult[Entry[K, V]]
}

// Deleter is an optional capability for delete-through of a single key.
type Deleter[K KeyConstraint] interface {
	// Delete removes the key from the backing store.
	// It is called even if the backing store has no mapping for the key; that is not an error.
	Delete(context.Context, K) error
}

// MultiDeleter is an optional capability for delete-through of multiple keys.
type MultiDeleter[K KeyConstraint] interface {
	// DeleteAll removes the keys from the backing store in any order.
	// Keys without a mapping are reported as succeeded.
	DeleteAll(context.Context, []K) BatchResult[K]
}

// SessionEnder is an optional capability for transactional backing stores.
type SessionEnder interface {
	// SessionEnd closes the current session.
	// If commit is true the buffered changes must be made durable, otherwise they must be discarded.
	SessionEnd(ctx context.Context, commit bool) error
}

// CacheStore is the complete call surface a cache engine uses to talk to a backing store.
// Implementations must be thread-safe for LoadCache; the other operations are called one at a time.
type CacheStore[K KeyConstraint, V ValueConstraint] interface {
	Loader[K, V]
	MultiLoader[K, V]
	Writer[K, V]
	MultiWriter[K, V]
	Deleter[K]
	MultiDeleter[K]
	SessionEnder

	// LoadCache loads all values from the backing store and passes them to the sink.
	LoadCache(ctx context.Context, sink Sink[K, V], args ...any) error
}
