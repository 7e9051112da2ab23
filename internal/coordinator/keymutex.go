package coordinator

import (
	"fmt"
	"sync"
)

// keyMutex hands out a *sync.Mutex per string key, creating it on first
// use and reclaiming it once the last holder releases it. It serializes
// the check-then-insert window of a single (chainId, takerKey) pair
// without serializing unrelated pairs, the same per-identity locking
// shape as ratelimit.RateLimiter's attempts map
// (internal/services/ratelimit/limiter.go), generalized from a
// timestamp list to a reference-counted mutex.
type keyMutex struct {
	mu      sync.Mutex
	entries map[string]*keyMutexEntry
}

type keyMutexEntry struct {
	mu       sync.Mutex
	refCount int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{entries: make(map[string]*keyMutexEntry)}
}

// Lock blocks until the exclusive lock for key is acquired. The returned
// func must be called exactly once to release it.
func (k *keyMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyMutexEntry{}
		k.entries[key] = e
	}
	e.refCount++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refCount--
		if e.refCount == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

func perTakerLockKey(chainID int64, takerKey string) string {
	return fmt.Sprintf("%d:%s", chainID, takerKey)
}
