// Package orderedmap provides a sorted map keyed by byte strings.
//
// Keys are ordered by byte-lexicographic comparison. Besides point lookups
// the map answers exclusive successor queries (NextKey), which is what
// ordered iteration and range scans are built on: starting from a key and
// repeatedly asking for its successor never revisits the start key.
//
// A Map is not safe for concurrent use.
package orderedmap

import (
	"fmt"
	"io"

	"github.com/google/btree"
)

const degree = 32

type entry[V any] struct {
	key   string
	value V
}

func less[V any](a, b entry[V]) bool {
	return a.key < b.key
}

type Map[V any] struct {
	tree *btree.BTreeG[entry[V]]
}

func New[V any]() *Map[V] {
	return &Map[V]{tree: btree.NewG[entry[V]](degree, less[V])}
}

// Destruct releases all entries. Values are dropped, not closed or freed;
// the caller stays responsible for any resources they hold.
func (m *Map[V]) Destruct() {
	m.tree.Clear(false)
}

func (m *Map[V]) Len() int {
	return m.tree.Len()
}

// Insert stores value under key, replacing any previous value.
func (m *Map[V]) Insert(key string, value V) {
	m.tree.ReplaceOrInsert(entry[V]{key: key, value: value})
}

func (m *Map[V]) Search(key string) (V, bool) {
	e, ok := m.tree.Get(entry[V]{key: key})
	return e.value, ok
}

// Remove deletes key and returns the value it held, if any.
func (m *Map[V]) Remove(key string) (V, bool) {
	e, ok := m.tree.Delete(entry[V]{key: key})
	return e.value, ok
}

// NextKey returns the smallest key strictly greater than key.
func (m *Map[V]) NextKey(key string) (string, bool) {
	e, ok := m.next(key)
	return e.key, ok
}

// NextValue returns the value stored under NextKey(key).
func (m *Map[V]) NextValue(key string) (V, bool) {
	e, ok := m.next(key)
	return e.value, ok
}

func (m *Map[V]) next(key string) (found entry[V], ok bool) {
	m.tree.AscendGreaterOrEqual(entry[V]{key: key}, func(e entry[V]) bool {
		if e.key == key {
			return true
		}
		found, ok = e, true
		return false
	})
	return found, ok
}

// First returns the smallest key.
func (m *Map[V]) First() (string, V, bool) {
	e, ok := m.tree.Min()
	return e.key, e.value, ok
}

// Ascend calls fn for every entry with key >= from, in ascending order,
// until fn returns false.
func (m *Map[V]) Ascend(from string, fn func(key string, value V) bool) {
	m.tree.AscendGreaterOrEqual(entry[V]{key: from}, func(e entry[V]) bool {
		return fn(e.key, e.value)
	})
}

// Clone returns a copy of m. The copy is lazy: both maps share structure
// until one of them is modified.
func (m *Map[V]) Clone() *Map[V] {
	return &Map[V]{tree: m.tree.Clone()}
}

// PrintAll writes every entry to w, one "key: value" line per entry, in
// ascending key order. The format is meant for humans only.
func (m *Map[V]) PrintAll(w io.Writer) error {
	var err error
	m.tree.Ascend(func(e entry[V]) bool {
		_, err = fmt.Fprintf(w, "%q: %v\n", e.key, e.value)
		return err == nil
	})
	return err
}
