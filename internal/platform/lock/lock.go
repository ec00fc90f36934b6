// Package lock provides mutual exclusion keyed by string. Policy and claim
// operations use "policy:<id>" and "claim:<id>" keys so unrelated aggregates
// never contend.
package lock

import (
	"context"
	"sync"

	dErrors "insurely/pkg/domain-errors"
)

// Locker acquires an exclusive lock on key, blocking until it is held or ctx is
// done. The returned release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// PolicyKey and ClaimKey name the lock guarding one aggregate.
func PolicyKey(id string) string { return "policy:" + id }
func ClaimKey(id string) string  { return "claim:" + id }

type keyEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is the in-process Locker. Entries are reference counted and
// removed once no goroutine holds or waits on the key.
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{keys: make(map[string]*keyEntry)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.keys[key]
	if !ok {
		entry = &keyEntry{sem: make(chan struct{}, 1)}
		k.keys[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, entry)
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for lock")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			k.unref(key, entry)
		})
	}, nil
}

func (k *KeyedMutex) unref(key string, entry *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.keys, key)
	}
}

// Len reports the number of live keys.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}
