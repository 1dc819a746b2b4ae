// Package kv provides a generic thread-safe key-value store that remembers
// insertion order.
package kv

import (
	"slices"
	"sync"
)

// Store is a thread-safe generic key-value store. Keys iterate in the order
// they were first inserted; overwriting a key keeps its position.
type Store[K comparable, V any] struct {
	mu    sync.RWMutex
	data  map[K]V
	order []K
}

// New creates a new key-value store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		data: make(map[K]V),
	}
}

// Get retrieves a value by key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

// Set stores a value by key.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		s.order = append(s.order, key)
	}
	s.data[key] = value
}

// SetIfAbsent stores value unless key is present. It returns the value held
// for key afterwards and whether it was already there.
func (s *Store[K, V]) SetIfAbsent(key K, value V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[key]; ok {
		return existing, true
	}
	s.order = append(s.order, key)
	s.data[key] = value
	return value, false
}

// Delete removes a key from the store and reports whether it was present.
func (s *Store[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	s.order = slices.DeleteFunc(s.order, func(k K) bool { return k == key })
	return true
}

// Find returns the first entry, in insertion order, for which match is true.
func (s *Store[K, V]) Find(match func(K, V) bool) (K, V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.order {
		if v := s.data[k]; match(k, v) {
			return k, v, true
		}
	}
	var (
		zk K
		zv V
	)
	return zk, zv, false
}

// Clear removes all entries from the store.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[K]V)
	s.order = nil
}

// Len returns the number of items in the store.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns all keys in insertion order.
func (s *Store[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Values returns all values in key insertion order.
func (s *Store[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.data[k])
	}
	return out
}
