// Package asynclock provides a mutual-exclusion lock whose waiters can give
// up when their context is cancelled.
//
// sync.Mutex cannot be abandoned by a waiter; a goroutine queued behind a
// slow connect attempt would be stuck until it completes. Mutex here is a
// weighted semaphore of size one, so Lock honours context cancellation and
// deadlines.
//
// Usage:
//
//	g, err := mu.Lock(ctx)
//	if err != nil {
//	    return err
//	}
//	defer g.Release()
package asynclock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Mutex is a context-aware mutual-exclusion lock.
// A Mutex must be created with New.
type Mutex struct {
	sem *semaphore.Weighted
}

// New returns an unlocked Mutex.
func New() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// Guard represents a held lock. Release unlocks it; calling Release more
// than once is a no-op, so it is safe to both defer it and release early.
type Guard struct {
	once sync.Once
	mu   *Mutex
}

// Release unlocks the mutex the guard was obtained from.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		g.mu.sem.Release(1)
	})
}

// Lock acquires the mutex, waiting until it is available or ctx is done.
// On cancellation the returned error is ctx.Err() and the lock is not held.
func (m *Mutex) Lock(ctx context.Context) (*Guard, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Guard{mu: m}, nil
}

// TryLock acquires the mutex only if it is free right now.
func (m *Mutex) TryLock() (*Guard, bool) {
	if !m.sem.TryAcquire(1) {
		return nil, false
	}
	return &Guard{mu: m}, true
}
