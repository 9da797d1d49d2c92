package ctxsync

import (
	"context"
	"sync"
)

// Mutex is a mutual exclusion lock that can stop waiting when a context is done.
// The zero value is an unlocked mutex.
type Mutex struct {
	once sync.Once
	sem  chan struct{}
}

var _ sync.Locker = (*Mutex)(nil)

func (m *Mutex) init() {
	m.once.Do(func() {
		m.sem = make(chan struct{}, 1)
	})
}

// Lock locks m, waiting as long as needed.
func (m *Mutex) Lock() {
	m.init()
	m.sem <- struct{}{}
}

// TryLock tries to lock m without waiting and reports whether it succeeded.
func (m *Mutex) TryLock() bool {
	m.init()
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// LockCtx locks m. If the context is done before the lock is acquired, it returns the context error
// and m is left as it was.
func (m *Mutex) LockCtx(ctx context.Context) error {
	if m.TryLock() {
		return nil
	}
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock unlocks m. It panics if m is not locked.
func (m *Mutex) Unlock() {
	m.init()
	select {
	case <-m.sem:
	default:
		panic("ctxsync: unlock of unlocked mutex")
	}
}
