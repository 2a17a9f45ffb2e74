//go:build unix || darwin || linux || freebsd || openbsd || netbsd

// internal/allocator/mmap_unix.go
package allocator

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// MmapAllocator is a slab allocator backed by a single anonymous mmap
// region rather than the Go heap: every Alloc carves a slice of the
// requested size off the front of a bump pointer into that region, and
// Free reclaims nothing until the whole slab is released. It exists to let a benchmark
// put retire/free pressure somewhere other than the Go garbage
// collector, the way the reference allocator wrapper maps a region with
// PROT_READ|PROT_WRITE and MAP_SHARED — here MAP_ANON|MAP_PRIVATE, since
// there is no backing file to share.
type MmapAllocator struct {
	mu        sync.Mutex
	region    []byte
	offset    int
	allocs    int64
	frees     int64
	bytesUsed int64
}

// NewMmapAllocator maps a region of regionSize bytes. Panics if the
// mapping cannot be created — there is no graceful degradation for a
// failed mmap at construction time, only for exhaustion of the mapped
// region afterward (via ErrExhausted).
func NewMmapAllocator(regionSize int) *MmapAllocator {
	region, err := unix.Mmap(-1, 0, regionSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic("allocator: mmap failed: " + err.Error())
	}
	return &MmapAllocator{region: region}
}

func (a *MmapAllocator) Alloc(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.offset+size > len(a.region) {
		return nil, ErrExhausted
	}
	buf := a.region[a.offset : a.offset+size : a.offset+size]
	a.offset += size
	atomic.AddInt64(&a.allocs, 1)
	atomic.AddInt64(&a.bytesUsed, int64(size))
	return buf, nil
}

// Free only updates the Frees and BytesUsed counters: this slab never
// reclaims individual allocations, only the whole region on Close.
func (a *MmapAllocator) Free(buf []byte) {
	atomic.AddInt64(&a.frees, 1)
	atomic.AddInt64(&a.bytesUsed, -int64(len(buf)))
}

func (a *MmapAllocator) Stats() Stats {
	return Stats{
		Allocs:    atomic.LoadInt64(&a.allocs),
		Frees:     atomic.LoadInt64(&a.frees),
		BytesUsed: atomic.LoadInt64(&a.bytesUsed),
	}
}

// Close unmaps the region. The allocator must not be used afterward.
func (a *MmapAllocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return unix.Munmap(a.region)
}
