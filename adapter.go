package storeadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/karupanerura/store-adapter/internal/panicutil"
	"github.com/sourcegraph/conc/pool"
)

// Adapter is a CacheStore that loads the cache in parallel from a BulkSource.
// The read, write, delete and session operations are delegated to the optional capabilities
// implemented by the source. Operations the source does not implement are no-ops.
type Adapter[R any, K KeyConstraint, V ValueConstraint] struct {
	source BulkSource[R, K, V]
	logger *slog.Logger

	mu          sync.RWMutex
	parallelism Parallelism
}

var _ CacheStore[uint8, struct{}] = (*Adapter[struct{}, uint8, struct{}])(nil)

// NewAdapter creates a new Adapter for the given source.
// The degree of parallelism defaults to the number of logical CPUs.
func NewAdapter[R any, K KeyConstraint, V ValueConstraint](source BulkSource[R, K, V], opts ...Option) *Adapter[R, K, V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Adapter[R, K, V]{
		source:      source,
		logger:      o.logger,
		parallelism: o.parallelism,
	}
}

// Parallelism returns the degree of parallelism used by LoadCache.
func (a *Adapter[R, K, V]) Parallelism() Parallelism {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.parallelism
}

// SetParallelism sets the degree of parallelism used by LoadCache.
// An invalid value is accepted here and rejected by the next LoadCache call.
func (a *Adapter[R, K, V]) SetParallelism(p Parallelism) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parallelism = p
}

// MaxDegreeOfParallelism returns the degree of parallelism as an integer, -1 meaning unbounded.
func (a *Adapter[R, K, V]) MaxDegreeOfParallelism() int {
	return a.Parallelism().Int()
}

// SetMaxDegreeOfParallelism sets the degree of parallelism from an integer.
// It must be either positive or -1 for an unbounded number of workers.
// An invalid value is accepted here and rejected by the next LoadCache call.
func (a *Adapter[R, K, V]) SetMaxDegreeOfParallelism(n int) {
	if n == unboundedDegree {
		a.SetParallelism(Unbounded())
		return
	}
	a.SetParallelism(Bounded(n))
}

// LoadCache reads every record of the source, parses it and passes the resulting entries to the sink.
// Records are parsed and sunk concurrently by up to Parallelism workers in no particular order.
// Records parsed as nil are skipped.
//
// The first failure of the source, the parser or the sink stops reading new records,
// and cancels the context passed to InputData so that a source waiting for its next record returns.
// Workers that are already processing a record are allowed to finish it.
// All the failures are joined into the returned error.
func (a *Adapter[R, K, V]) LoadCache(ctx context.Context, sink Sink[K, V], args ...any) error {
	parallelism := a.Parallelism()
	if err := parallelism.Validate(); err != nil {
		return err
	}

	var (
		stats   loadStats
		goexit  atomic.Bool
		stopped atomic.Bool // some records were not processed because of the abort
		start   = time.Now()
	)
	a.logger.DebugContext(ctx, "load cache started", slog.String("parallelism", parallelism.String()))

	// abort stops the source and the start of new work.
	// The in-flight work keeps using ctx so that it is not interrupted.
	abort, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	p := pool.New().WithErrors()
	if !parallelism.IsUnbounded() {
		p = p.WithMaxGoroutines(parallelism.Workers())
	}
	guard := panicutil.Guard{
		OnGoexit: func() {
			goexit.Store(true)
			cancel(errGoexit)
		},
	}

	var inputErr error
	for record, err := range a.source.InputData(abort) {
		if abort.Err() != nil {
			stopped.Store(true)
			break
		}
		if err != nil {
			inputErr = fmt.Errorf("%w: %w", ErrInputData, err)
			cancel(inputErr)
			break
		}

		stats.records.Add(1)
		p.Go(func() error {
			if abort.Err() != nil {
				stopped.Store(true)
				return nil
			}
			if err := guard.Call(func() error {
				return a.process(ctx, sink, &stats, record, args)
			}); err != nil {
				cancel(err)
				return err
			}
			return nil
		})
	}

	err := errors.Join(inputErr, p.Wait())
	if goexit.Load() {
		runtime.Goexit()
	}
	if err == nil && stopped.Load() {
		// the parent context was canceled
		err = context.Cause(abort)
	}

	attrs := []slog.Attr{
		slog.Int64("records", stats.records.Load()),
		slog.Int64("skipped", stats.skipped.Load()),
		slog.Int64("sunk", stats.sunk.Load()),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		a.logger.LogAttrs(ctx, slog.LevelDebug, "load cache aborted", append(attrs, slog.Any("error", err))...)
		return err
	}
	a.logger.LogAttrs(ctx, slog.LevelDebug, "load cache finished", attrs...)
	return nil
}

var errGoexit = errors.New("runtime.Goexit is called")

// loadStats counts the records of a LoadCache call.
type loadStats struct {
	records atomic.Int64
	skipped atomic.Int64
	sunk    atomic.Int64
}

// process parses a single record and sinks the entry.
func (a *Adapter[R, K, V]) process(ctx context.Context, sink Sink[K, V], stats *loadStats, record R, args []any) error {
	entry, err := a.source.Parse(ctx, record, args...)
	if err != nil {
		return &ParseError{Record: record, Err: err}
	}
	if entry == nil {
		stats.skipped.Add(1)
		return nil
	}
	if err := sink(ctx, entry.Key, entry.Value); err != nil {
		return &SinkError{Key: entry.Key, Err: err}
	}
	stats.sunk.Add(1)
	return nil
}

// Load retrieves a value from the source if it implements Loader.
// Otherwise it returns nil, meaning the value cannot be loaded.
func (a *Adapter[R, K, V]) Load(ctx context.Context, key K) (*Entry[K, V], error) {
	if l, ok := a.source.(Loader[K, V]); ok {
		return l.Load(ctx, key)
	}
	return nil, nil
}

// LoadAll retrieves values from the source if it implements MultiLoader.
// Otherwise it returns nil, meaning the caller should fall back to Load.
func (a *Adapter[R, K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	if l, ok := a.source.(MultiLoader[K, V]); ok {
		return l.LoadAll(ctx, keys)
	}
	return nil, nil
}

// Write writes a value to the source if it implements Writer. Otherwise it does nothing.
func (a *Adapter[R, K, V]) Write(ctx context.Context, key K, value V) error {
	if w, ok := a.source.(Writer[K, V]); ok {
		return w.Write(ctx, key, value)
	}
	return nil
}

// WriteAll writes the entries to the source.
// It uses MultiWriter if implemented, and otherwise writes the entries one by one with Writer,
// stopping at the first failure. If the source implements neither, every entry is reported as succeeded.
func (a *Adapter[R, K, V]) WriteAll(ctx context.Context, entries []Entry[K, V]) BatchResult[Entry[K, V]] {
	if w, ok := a.source.(MultiWriter[K, V]); ok {
		return w.WriteAll(ctx, entries)
	}
	if w, ok := a.source.(Writer[K, V]); ok {
		return Each(ctx, entries, func(ctx context.Context, e Entry[K, V]) error {
			return w.Write(ctx, e.Key, e.Value)
		})
	}
	return SucceededAll(entries)
}

// Delete deletes a key from the source if it implements Deleter. Otherwise it does nothing.
func (a *Adapter[R, K, V]) Delete(ctx context.Context, key K) error {
	if d, ok := a.source.(Deleter[K]); ok {
		return d.Delete(ctx, key)
	}
	return nil
}

// DeleteAll deletes the keys from the source.
// It uses MultiDeleter if implemented, and otherwise deletes the keys one by one with Deleter,
// stopping at the first failure. If the source implements neither, every key is reported as succeeded.
func (a *Adapter[R, K, V]) DeleteAll(ctx context.Context, keys []K) BatchResult[K] {
	if d, ok := a.source.(MultiDeleter[K]); ok {
		return d.DeleteAll(ctx, keys)
	}
	if d, ok := a.source.(Deleter[K]); ok {
		return Each(ctx, keys, d.Delete)
	}
	return SucceededAll(keys)
}

// SessionEnd notifies the source of the end of the session if it implements SessionEnder.
// Otherwise it does nothing.
func (a *Adapter[R, K, V]) SessionEnd(ctx context.Context, commit bool) error {
	if s, ok := a.source.(SessionEnder); ok {
		return s.SessionEnd(ctx, commit)
	}
	return nil
}
