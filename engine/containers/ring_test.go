package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingFIFO(t *testing.T) {
	r := NewRing[int](3)
	assert.True(t, r.IsEmpty())

	r.Push(1)
	r.Push(2)
	v, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, r.Len())
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing[int](2)
	assert.False(t, r.Push(1))
	assert.False(t, r.Push(2))
	assert.True(t, r.IsFull())
	assert.True(t, r.Push(3))

	var got []int
	r.Each(func(v int) { got = append(got, v) })
	assert.Equal(t, []int{2, 3}, got)
}

func TestRingPopEmpty(t *testing.T) {
	r := NewRing[string](1)
	_, ok := r.Pop()
	assert.False(t, ok)
}
