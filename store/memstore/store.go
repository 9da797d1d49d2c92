package memstore

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/internal/keyhash"
)

type bucket[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	m  map[K]V
	mu sync.RWMutex
}

// change is a buffered write or delete.
type change[V storeadapter.ValueConstraint] struct {
	value   V
	deleted bool
}

type session[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	id      uuid.UUID
	started time.Time
	changes map[K]change[V]
}

// Store is an in-memory backing store.
type Store[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	buckets []*bucket[K, V]
	options options[K, V]

	mu      sync.Mutex
	session *session[K, V]
}

var (
	_ storeadapter.BulkSource[storeadapter.Entry[uint8, struct{}], uint8, struct{}] = (*Store[uint8, struct{}])(nil)
	_ storeadapter.Loader[uint8, struct{}]                                          = (*Store[uint8, struct{}])(nil)
	_ storeadapter.MultiLoader[uint8, struct{}]                                     = (*Store[uint8, struct{}])(nil)
	_ storeadapter.Writer[uint8, struct{}]                                          = (*Store[uint8, struct{}])(nil)
	_ storeadapter.Deleter[uint8]                                                   = (*Store[uint8, struct{}])(nil)
	_ storeadapter.SessionEnder                                                     = (*Store[uint8, struct{}])(nil)
)

// New creates a new in-memory store.
func New[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](opts ...Option[K, V]) *Store[K, V] {
	options := defaultOptions[K, V]()
	for _, opt := range opts {
		opt.apply(&options)
	}
	if options.hashKey == nil && options.bucketsSize > 1 {
		options.hashKey = keyhash.New[K]()
	}

	buckets := make([]*bucket[K, V], options.bucketsSize)
	for i := range buckets {
		buckets[i] = &bucket[K, V]{m: map[K]V{}}
	}
	return &Store[K, V]{
		buckets: buckets,
		options: options,
	}
}

// resolveBucket returns the bucket that corresponds to the given key.
func (s *Store[K, V]) resolveBucket(key K) *bucket[K, V] {
	if len(s.buckets) == 1 {
		return s.buckets[0]
	}
	index := s.options.hashKey(key) % len(s.buckets)
	if index < 0 {
		index *= -1
	}
	return s.buckets[index]
}

// InputData yields every committed entry. Each bucket is copied under its lock before its entries are yielded.
func (s *Store[K, V]) InputData(ctx context.Context) iter.Seq2[storeadapter.Entry[K, V], error] {
	return func(yield func(storeadapter.Entry[K, V], error) bool) {
		var entries []storeadapter.Entry[K, V]
		for _, b := range s.buckets {
			if err := ctx.Err(); err != nil {
				yield(storeadapter.Entry[K, V]{}, err)
				return
			}

			b.mu.RLock()
			entries = entries[:0]
			for k, v := range b.m {
				entries = append(entries, storeadapter.Entry[K, V]{Key: k, Value: v})
			}
			b.mu.RUnlock()

			for _, e := range entries {
				if !yield(e, nil) {
					return
				}
			}
		}
	}
}

// Parse returns the record itself.
func (s *Store[K, V]) Parse(_ context.Context, record storeadapter.Entry[K, V], _ ...any) (*storeadapter.Entry[K, V], error) {
	return &record, nil
}

// Load returns the value of the key, including the changes of the current session.
func (s *Store[K, V]) Load(ctx context.Context, key K) (*storeadapter.Entry[K, V], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.lookupLocked(key); ok {
		return &storeadapter.Entry[K, V]{Key: key, Value: v}, nil
	}
	return nil, nil
}

// LoadAll returns the values of the keys that exist, including the changes of the current session.
func (s *Store[K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[K]V, len(keys))
	for _, key := range keys {
		if v, ok := s.lookupLocked(key); ok {
			m[key] = v
		}
	}
	return m, nil
}

// lookupLocked looks up the key in the session first and then in the buckets.
// It must be called with s.mu held.
func (s *Store[K, V]) lookupLocked(key K) (V, bool) {
	if s.session != nil {
		if c, ok := s.session.changes[key]; ok {
			return c.value, !c.deleted
		}
	}

	b := s.resolveBucket(key)
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[key]
	return v, ok
}

// Write stores the value. It is buffered in the current session unless the store is autocommit.
func (s *Store[K, V]) Write(ctx context.Context, key K, value V) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.change(ctx, key, change[V]{value: value})
	return nil
}

// Delete deletes the key. It is buffered in the current session unless the store is autocommit.
// Deleting a missing key is not an error.
func (s *Store[K, V]) Delete(ctx context.Context, key K) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.change(ctx, key, change[V]{deleted: true})
	return nil
}

func (s *Store[K, V]) change(ctx context.Context, key K, c change[V]) {
	if s.options.autocommit {
		s.apply(key, c)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		s.session = &session[K, V]{
			id:      uuid.New(),
			started: time.Now(),
			changes: map[K]change[V]{},
		}
		s.options.logger.DebugContext(ctx, "session started", slog.String("session", s.session.id.String()))
	}
	s.session.changes[key] = c
}

func (s *Store[K, V]) apply(key K, c change[V]) {
	b := s.resolveBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.deleted {
		delete(b.m, key)
	} else {
		b.m[key] = c.value
	}
}

// SessionEnd commits or discards the changes buffered in the current session.
// It is a no-op if there is no session.
func (s *Store[K, V]) SessionEnd(ctx context.Context, commit bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess == nil {
		return nil
	}
	s.session = nil

	if commit {
		for key, c := range sess.changes {
			s.apply(key, c)
		}
	}
	s.options.logger.LogAttrs(ctx, slog.LevelDebug, "session ended",
		slog.String("session", sess.id.String()),
		slog.Bool("commit", commit),
		slog.Int("changes", len(sess.changes)),
		slog.Duration("elapsed", time.Since(sess.started)),
	)
	return nil
}

// Len returns the number of committed entries.
func (s *Store[K, V]) Len() int {
	n := 0
	for _, b := range s.buckets {
		b.mu.RLock()
		n += len(b.m)
		b.mu.RUnlock()
	}
	return n
}
