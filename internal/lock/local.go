package lock

import (
	"context"
	"fmt"
	"sync"
)

// LocalLocker serializes requests within a single process.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry is a lock on one key. The channel holds a token while the key is locked. refs counts the
// holders and waiters so that unused entries can be dropped.
type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns a locker for a single service instance.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*entry)}
}

func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	keys = normalize(keys)
	acquired := make([]string, 0, len(keys))
	for _, key := range keys {
		e := l.acquireEntry(key)
		select {
		case e.ch <- struct{}{}:
			acquired = append(acquired, key)
		case <-ctx.Done():
			l.releaseEntry(key, false)
			l.release(acquired)
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.release(acquired) })
	}, nil
}

func (l *LocalLocker) acquireEntry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) releaseEntry(key string, locked bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	if locked {
		<-e.ch
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *LocalLocker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.releaseEntry(keys[i], true)
	}
}
