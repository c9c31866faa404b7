package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushWithinCapacity(t *testing.T) {
	b := New[int](3)

	b.Push(1)
	b.Push(2)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 3, b.Cap())
	assert.False(t, b.Full())
	assert.Equal(t, []int{1, 2}, b.Snapshot())
}

func TestOverwriteOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 4; i++ {
		b.Push(i)
	}

	// The fourth push overwrote slot 0; capacity holds.
	assert.Equal(t, 3, b.Len())
	assert.True(t, b.Full())
	assert.Equal(t, []int{2, 3, 4}, b.Snapshot())

	// Capacity stays invariant for all subsequent insertions.
	for i := 5; i <= 20; i++ {
		b.Push(i)
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{18, 19, 20}, b.Snapshot())
}

func TestAtAndReplace(t *testing.T) {
	b := New[string](2)
	b.Push("a")
	b.Push("b")
	b.Push("c") // wraps, "a" gone

	require.Equal(t, 2, b.Len())
	assert.Equal(t, "b", b.At(0))
	assert.Equal(t, "c", b.At(1))

	b.Replace(0, "B")
	assert.Equal(t, []string{"B", "c"}, b.Snapshot())
}

func TestEachVisitsOldestFirst(t *testing.T) {
	b := New[int](4)
	for i := 0; i < 6; i++ {
		b.Push(i * 10)
	}

	var got []int
	b.Each(func(i int, v int) {
		got = append(got, v)
	})
	assert.Equal(t, []int{20, 30, 40, 50}, got)
}

func TestNewPanicsOnBadCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
