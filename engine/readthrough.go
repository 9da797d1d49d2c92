package engine

import (
	"context"
	"errors"
	"runtime"
	"sync"

	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/internal/panicutil"
)

var errGoexit = errors.New("runtime.Goexit is called")

type either[L any, R any] struct {
	L L
	R R
}

type result[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] = either[error, *storeadapter.Entry[K, V]]

// readThrough loads missing keys from the backing store.
// Concurrent loads of the same key share a single store call.
type readThrough[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint] struct {
	engine *Engine[K, V]

	mu        sync.Mutex
	waitlists map[K][]chan result[K, V]
}

func newReadThrough[K storeadapter.KeyConstraint, V storeadapter.ValueConstraint](e *Engine[K, V]) *readThrough[K, V] {
	return &readThrough[K, V]{
		engine:    e,
		waitlists: map[K][]chan result[K, V]{},
	}
}

// load returns the entry of the key loaded from the backing store, or nil if it is absent.
func (l *readThrough[K, V]) load(ctx context.Context, key K) (*storeadapter.Entry[K, V], error) {
	entries, err := l.loadMulti(ctx, []K{key})
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// loadMulti returns the entries of the keys loaded from the backing store, in the order of the keys.
func (l *readThrough[K, V]) loadMulti(ctx context.Context, keys []K) ([]*storeadapter.Entry[K, V], error) {
	channels := l.register(keys)

	entries := make([]*storeadapter.Entry[K, V], len(channels))
	var lastErr error
	for i, ch := range channels {
		select {
		case r := <-ch:
			if r.L != nil {
				if r.L == errGoexit {
					runtime.Goexit()
				}
				lastErr = r.L
				continue
			}
			entries[i] = r.R
		case <-ctx.Done():
			offset := i
			go func() {
				for _, ch := range channels[offset:] {
					<-ch
				}
			}()
			return nil, ctx.Err()
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return entries, nil
}

// register registers the keys and starts loading the keys that nobody is waiting for yet.
func (l *readThrough[K, V]) register(keys []K) []chan result[K, V] {
	l.mu.Lock()
	defer l.mu.Unlock()

	targetKeys := make([]K, 0, len(keys))
	channels := make([]chan result[K, V], len(keys))
	for i, key := range keys {
		ch := make(chan result[K, V], 1)
		l.waitlists[key] = append(l.waitlists[key], ch)
		if len(l.waitlists[key]) == 1 {
			targetKeys = append(targetKeys, key)
		}
		channels[i] = ch
	}
	if len(targetKeys) != 0 {
		go l.fetch(l.engine.options.context(), targetKeys)
	}
	return channels
}

// fetch loads the keys from the backing store and caches the found entries.
func (l *readThrough[K, V]) fetch(ctx context.Context, keys []K) {
	guard := panicutil.Guard{
		OnGoexit: func() {
			l.throwError(keys, errGoexit)
		},
	}

	var found map[K]V
	if err := guard.Call(func() (err error) {
		found, err = l.engine.fetch(ctx, keys)
		return
	}); err != nil {
		l.throwError(keys, err)
		return
	}
	l.send(keys, found)
}

// send sends the found entries to the waiting channels. Keys not found are sent as nil.
func (l *readThrough[K, V]) send(keys []K, found map[K]V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		v, ok := found[k]
		for _, wl := range l.waitlists[k] {
			if !ok {
				wl <- result[K, V]{}
			} else {
				// found values are shared with the local map.
				entry := storeadapter.Entry[K, V]{Key: k, Value: l.engine.options.cloner.CloneValue(v)}
				wl <- result[K, V]{R: &entry}
			}
			close(wl)
		}
		delete(l.waitlists, k)
	}
}

// throwError sends an error to the waiting channels.
func (l *readThrough[K, V]) throwError(keys []K, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range keys {
		for _, wl := range l.waitlists[k] {
			wl <- result[K, V]{L: err}
			close(wl)
		}
		delete(l.waitlists, k)
	}
}
