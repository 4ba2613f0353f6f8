// Package lock provides per-key single-writer locks.
//
// Group-scoped mutations (turn advance, member renumbering) lock "group:<id>"
// and subscription mutations lock "account:<id>". The storage transaction is
// still the source of truth; the lock keeps concurrent writers on one
// instance from burning retries and orders realtime events per account.
package lock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive lock on a key. The returned unlock function
// must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// GroupKey is the lock key of a group.
func GroupKey(groupID string) string { return "group:" + groupID }

// AccountKey is the lock key of an account.
func AccountKey(accountID string) string { return "account:" + accountID }

// Local is an in-process keyed mutex. Entries are removed when no goroutine
// holds or waits for them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an empty in-process Locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

// Lock blocks until the key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
