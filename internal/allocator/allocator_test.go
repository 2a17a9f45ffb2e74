// internal/allocator/allocator_test.go
package allocator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeapAllocatorTracksStats(t *testing.T) {
	a := NewHeapAllocator()

	buf, err := a.Alloc(64)
	require.NoError(t, err)
	require.Len(t, buf, 64)

	stats := a.Stats()
	require.Equal(t, int64(1), stats.Allocs)
	require.Equal(t, int64(64), stats.BytesUsed)

	a.Free(buf)
	stats = a.Stats()
	require.Equal(t, int64(1), stats.Frees)
	require.Equal(t, int64(0), stats.BytesUsed)
}

func TestFaultInjectorFailsEveryNth(t *testing.T) {
	inj := NewFaultInjector(NewHeapAllocator(), 3)

	for i := 1; i <= 6; i++ {
		_, err := inj.Alloc(8)
		if i%3 == 0 {
			require.ErrorIs(t, err, ErrExhausted)
		} else {
			require.NoError(t, err)
		}
	}
}

func TestFaultInjectorDisabledByNonPositiveInterval(t *testing.T) {
	inj := NewFaultInjector(NewHeapAllocator(), 0)
	for i := 0; i < 10; i++ {
		_, err := inj.Alloc(8)
		require.NoError(t, err)
	}
}

func TestMmapAllocatorExhaustsRegion(t *testing.T) {
	a := NewMmapAllocator(128)
	defer a.Close()

	buf1, err := a.Alloc(100)
	require.NoError(t, err)
	require.Len(t, buf1, 100)

	_, err = a.Alloc(64)
	require.ErrorIs(t, err, ErrExhausted)

	buf2, err := a.Alloc(28)
	require.NoError(t, err)
	require.Len(t, buf2, 28)
}
