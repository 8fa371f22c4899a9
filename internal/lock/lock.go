// Package lock provides mutual exclusion keyed by event, used to serialize
// settlement passes so two concurrent settlements of the same event cannot
// both observe a trade as executed.
package lock

import (
	"context"
	"sync"
)

// EventLocker serializes work per key. Acquire blocks (or fails) until the
// key is free and returns an unlock function that must be called to release
// it. The unlock function is safe to call multiple times.
type EventLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// LocalLocker implements EventLocker with in-process keyed mutexes. Correct
// for a single instance; use RedisLocker when running more than one.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true
		m.Unlock()
	}
	return unlock, nil
}
