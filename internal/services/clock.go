// internal/services/clock.go
package services

import (
	"sync"
	"time"
)

// Clock supplies the single logical time sample each ledger operation uses.
// Operations read the clock exactly once and carry that value through every
// check and mutation in the call.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// keyedMutex linearizes operations contending for the same
// (licensee, applicationHash) key. Lock returns the unlock function.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entryLock)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entryLock{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func agreementKey(licensee, applicationHash string) string {
	return licensee + "/" + applicationHash
}
