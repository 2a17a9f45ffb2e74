//go:build windows

// internal/allocator/mmap_windows.go
package allocator

// MmapAllocator has no anonymous-mmap-backed implementation on Windows
// in this package; NewMmapAllocator falls back to the heap so callers
// that select it for benchmarking still run, just without the
// off-heap property.
type MmapAllocator struct {
	*HeapAllocator
}

// NewMmapAllocator returns a HeapAllocator-backed stand-in on Windows.
func NewMmapAllocator(regionSize int) *MmapAllocator {
	return &MmapAllocator{HeapAllocator: NewHeapAllocator()}
}

// Close is a no-op on the heap-backed stand-in.
func (a *MmapAllocator) Close() error { return nil }
