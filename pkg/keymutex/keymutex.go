// Package keymutex provides striped per-key locking. Upserts against the
// same loan must not interleave, but documents for different loans are
// independent and run in parallel.
package keymutex

import (
	"sort"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex hands out one mutex per key on demand and reclaims it once the
// last holder releases.
type KeyMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{entries: make(map[string]*entry)}
}

// Lock acquires every listed key and returns the matching unlock function.
// Keys are de-duplicated and acquired in sorted order so two callers locking
// overlapping key sets cannot deadlock.
func (k *KeyMutex) Lock(keys ...string) func() {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	sort.Strings(unique)

	acquired := make([]*entry, 0, len(unique))
	for _, key := range unique {
		k.mu.Lock()
		e, ok := k.entries[key]
		if !ok {
			e = &entry{}
			k.entries[key] = e
		}
		e.refs++
		k.mu.Unlock()

		e.mu.Lock()
		acquired = append(acquired, e)
	}

	locked := unique
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].mu.Unlock()

			k.mu.Lock()
			e := acquired[i]
			e.refs--
			if e.refs == 0 {
				delete(k.entries, locked[i])
			}
			k.mu.Unlock()
		}
	}
}
