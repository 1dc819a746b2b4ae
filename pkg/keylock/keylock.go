// Package keylock provides a table of mutexes keyed by string.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table hands out one mutex per key. Entries are dropped once no goroutine
// holds or waits on them.
type Table struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates an empty lock table.
func New() *Table {
	return &Table{locks: make(map[string]*entry)}
}

// Lock blocks until key is held and returns the matching unlock func.
func (t *Table) Lock(key string) (unlock func()) {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &entry{}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			t.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(t.locks, key)
			}
			t.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or waited on.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
