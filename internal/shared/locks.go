package shared

import (
	"fmt"
	"sort"
	"sync"
)

// SKULockKey builds keys guarding the reservation critical section of one SKU.
func SKULockKey(sku string) string {
	return fmt.Sprintf("inventory:sku:%s:lock", sku)
}

// SequenceLockKey builds keys guarding order-number allocation for a tenant and business day.
func SequenceLockKey(tenantID, dateKey string) string {
	return fmt.Sprintf("sales:seq:%s:%s:lock", tenantID, dateKey)
}

// KeyedMutex hands out one mutex per key. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex constructs an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Lock blocks until key is held and returns the matching unlock func.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*keyedEntry)
	}
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			k.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}

// LockAll acquires every distinct key in sorted order so that callers locking
// overlapping sets cannot deadlock. Unlock releases them in reverse.
func (k *KeyedMutex) LockAll(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, key)
	}
	sort.Strings(uniq)
	unlocks := make([]func(), 0, len(uniq))
	for _, key := range uniq {
		unlocks = append(unlocks, k.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Held reports the number of keys currently tracked. Intended for tests.
func (k *KeyedMutex) Held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Waiting reports how many goroutines hold or wait on key. Intended for tests.
func (k *KeyedMutex) Waiting(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if entry, ok := k.entries[key]; ok {
		return entry.refs
	}
	return 0
}
