package storage

import (
	"slices"
	"sync"
)

// LockTable hands out per-key mutexes. Keys are locked in sorted order so two
// callers locking overlapping sets cannot deadlock.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*lockEntry)}
}

// Lock acquires every key and returns the function that releases them.
func (t *LockTable) Lock(keys ...string) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	entries := make([]*lockEntry, len(sorted))
	t.mu.Lock()
	for i, k := range sorted {
		e, ok := t.locks[k]
		if !ok {
			e = &lockEntry{}
			t.locks[k] = e
		}
		e.refs++
		entries[i] = e
	}
	t.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
	}

	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
		t.mu.Lock()
		for i, k := range sorted {
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(t.locks, k)
			}
		}
		t.mu.Unlock()
	}
}

// Held returns the number of keys currently locked or awaited.
func (t *LockTable) Held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
