// internal/allocator/heap.go
package allocator

import "sync/atomic"

// HeapAllocator satisfies Allocator directly from the Go heap. It never
// returns ErrExhausted (Go panics on true OOM rather than returning an
// error), making it the default for every path that does not care about
// exercising the exhaustion contract.
type HeapAllocator struct {
	allocs    int64
	frees     int64
	bytesUsed int64
}

// NewHeapAllocator creates an Allocator backed by make([]byte, size).
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{}
}

func (a *HeapAllocator) Alloc(size int) ([]byte, error) {
	buf := make([]byte, size)
	atomic.AddInt64(&a.allocs, 1)
	atomic.AddInt64(&a.bytesUsed, int64(size))
	return buf, nil
}

func (a *HeapAllocator) Free(buf []byte) {
	atomic.AddInt64(&a.frees, 1)
	atomic.AddInt64(&a.bytesUsed, -int64(len(buf)))
}

func (a *HeapAllocator) Stats() Stats {
	return Stats{
		Allocs:    atomic.LoadInt64(&a.allocs),
		Frees:     atomic.LoadInt64(&a.frees),
		BytesUsed: atomic.LoadInt64(&a.bytesUsed),
	}
}
