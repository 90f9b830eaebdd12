// Package ordmap provides a string-keyed map that preserves insertion
// order across iteration and re-serialization.
package ordmap

// Map is an insertion-ordered map from string keys to values of type V.
// Setting an existing key replaces the value but keeps the key's original
// position. The zero value is ready to use.
type Map[V any] struct {
	keys  []string
	vals  []V
	index map[string]int
}

func New[V any]() *Map[V] {
	return &Map[V]{}
}

func (m *Map[V]) Len() int {
	return len(m.keys)
}

func (m *Map[V]) Set(key string, val V) {
	if i, ok := m.index[key]; ok {
		m.vals[i] = val
		return
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
}

func (m *Map[V]) Get(key string) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.vals[i], true
	}
	var zero V
	return zero, false
}

func (m *Map[V]) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Delete removes key and shifts later entries down one position.
func (m *Map[V]) Delete(key string) bool {
	i, ok := m.index[key]
	if !ok {
		return false
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
	delete(m.index, key)
	for j := i; j < len(m.keys); j++ {
		m.index[m.keys[j]] = j
	}
	return true
}

// Keys returns the keys in insertion order. The slice is shared; callers
// must not modify it.
func (m *Map[V]) Keys() []string {
	return m.keys
}

// At returns the entry at position i in insertion order.
func (m *Map[V]) At(i int) (string, V) {
	return m.keys[i], m.vals[i]
}

func (m *Map[V]) Values() []V {
	return m.vals
}
