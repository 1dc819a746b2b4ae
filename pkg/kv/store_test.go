package kv

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_GetSet(t *testing.T) {
	s := New[string, int]()

	s.Set("foo", 42)
	val, ok := s.Get("foo")
	assert.True(t, ok)
	assert.Equal(t, 42, val)

	_, ok = s.Get("bar")
	assert.False(t, ok)
}

func TestStore_InsertionOrder(t *testing.T) {
	s := New[string, int]()
	s.Set("c", 3)
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 30)

	assert.Equal(t, []string{"c", "a", "b"}, s.Keys())
	assert.Equal(t, []int{30, 1, 2}, s.Values())

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, []string{"c", "b"}, s.Keys())
}

func TestStore_SetIfAbsent(t *testing.T) {
	s := New[string, string]()

	v, loaded := s.SetIfAbsent("k", "first")
	assert.False(t, loaded)
	assert.Equal(t, "first", v)

	v, loaded = s.SetIfAbsent("k", "second")
	assert.True(t, loaded)
	assert.Equal(t, "first", v)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Find(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 2)

	k, v, ok := s.Find(func(_ string, v int) bool { return v == 2 })
	assert.True(t, ok)
	assert.Equal(t, "b", k)
	assert.Equal(t, 2, v)

	_, _, ok = s.Find(func(_ string, v int) bool { return v > 10 })
	assert.False(t, ok)
}

func TestStore_Clear(t *testing.T) {
	s := New[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())
}

func TestStore_Concurrent(t *testing.T) {
	s := New[string, int]()
	var wg sync.WaitGroup

	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%10)
			s.Set(key, n)
			s.Get(key)
			s.Keys()
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 10, s.Len())
	assert.Len(t, s.Keys(), 10)
}
