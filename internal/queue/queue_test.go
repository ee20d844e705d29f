package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinQueue(t *testing.T) {
	pq := NewMin(4)
	for i, d := range []float64{3, 1, 4, 1.5, 0.5} {
		pq.Push(Item{Offset: i, Distance: d})
	}
	require.Equal(t, 5, pq.Len())

	var got []float64
	for pq.Len() > 0 {
		it, ok := pq.Pop()
		require.True(t, ok)
		got = append(got, it.Distance)
	}
	assert.Equal(t, []float64{0.5, 1, 1.5, 3, 4}, got)

	_, ok := pq.Pop()
	assert.False(t, ok)
	_, ok = pq.Top()
	assert.False(t, ok)
}

func TestPushBounded(t *testing.T) {
	pq := NewMax(3)
	for i, d := range []float64{5, 1, 4, 2, 3, 0} {
		pq.PushBounded(Item{Offset: i, Distance: d}, 3)
	}
	require.Equal(t, 3, pq.Len())

	top, ok := pq.Top()
	require.True(t, ok)
	assert.Equal(t, 2.0, top.Distance)

	assert.False(t, pq.PushBounded(Item{Offset: 9, Distance: 7}, 3))
	assert.False(t, NewMax(0).PushBounded(Item{}, 0))

	pq.Reset()
	assert.Equal(t, 0, pq.Len())
}

func TestTieBreakByOffset(t *testing.T) {
	pq := NewMax(2)
	pq.PushBounded(Item{Offset: 4, Distance: 1}, 2)
	pq.PushBounded(Item{Offset: 2, Distance: 1}, 2)
	pq.PushBounded(Item{Offset: 1, Distance: 1}, 2)

	var offsets []int
	for pq.Len() > 0 {
		it, _ := pq.Pop()
		offsets = append(offsets, it.Offset)
	}
	assert.Equal(t, []int{2, 1}, offsets)
}
