package ordmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetOrder(t *testing.T) {
	var m Map[int]
	m.Set("zebra", 1)
	m.Set("apple", 2)
	m.Set("mango", 3)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, m.Keys())

	v, ok := m.Get("apple")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestSetExistingKeepsPosition(t *testing.T) {
	var m Map[string]
	m.Set("a", "one")
	m.Set("b", "two")
	m.Set("a", "uno")
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, _ := m.Get("a")
	assert.Equal(t, "uno", v)
	assert.Equal(t, 2, m.Len())
}

func TestDelete(t *testing.T) {
	var m Map[int]
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)
	require.True(t, m.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.False(t, m.Delete("b"))

	// Index stays consistent after the shift.
	v, ok := m.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	key, val := m.At(1)
	assert.Equal(t, "c", key)
	assert.Equal(t, 3, val)
}
