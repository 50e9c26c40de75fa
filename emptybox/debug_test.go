//go:build debug_emptybox

package emptybox_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/emptybox/allocator"
	"github.com/vkngwrapper/emptybox/emptybox"
)

func TestWriteWhileEmptyDetected(t *testing.T) {
	storage := new(uint64)
	boxed := emptybox.FromPointer(storage)

	_, empty := boxed.Take()
	*storage = 5

	require.PanicsWithValue(t, "MEMORY CORRUPTION DETECTED IN EMPTY BOX", func() {
		empty.Put(1)
	})
}

func TestUntouchedEmptyPasses(t *testing.T) {
	storage := new([3]uint16)
	boxed := emptybox.FromPointer(storage)

	_, empty := boxed.Take()
	require.NotEqual(t, [3]uint16{}, *storage)

	boxed = empty.Put([3]uint16{1, 2, 3})
	require.Equal(t, [3]uint16{1, 2, 3}, *storage)
	boxed.Drop()
}

func TestCorruptedEmptyStaysReleasable(t *testing.T) {
	tracking, err := allocator.New(nil, nil, allocator.CreateOptions{})
	require.NoError(t, err)

	boxed, err := emptybox.NewIn(tracking, uint64(1))
	require.NoError(t, err)

	stale := boxed.Get()
	_, empty := boxed.Take()
	*stale = 5

	require.PanicsWithValue(t, "MEMORY CORRUPTION DETECTED IN EMPTY BOX", func() {
		empty.Put(2)
	})
	require.True(t, empty.Alive())

	empty.Release()
	require.NoError(t, tracking.Destroy())
}
