// internal/allocator/allocator.go
package allocator

import "errors"

// ErrExhausted is returned by an Allocator that cannot satisfy a
// request. The caller that requested the allocation fails its own
// operation with this error (cmd/lfmapbench's worker returns it)
// rather than panicking.
var ErrExhausted = errors.New("allocator: exhausted")

// Allocator is a pluggable allocation seam with byte-granular Alloc and
// Free. Go's own heap allocator cannot itself be
// made to fail short of an OOM panic, so this interface exists to give
// tests and benchmarks an injectable stand-in — pkg/ebr, pkg/splitlist,
// and pkg/lfmap do not import this package at all and rely on the Go
// heap directly; it is consumed only by this package's own tests and by
// cmd/lfmapbench.
type Allocator interface {
	// Alloc returns a byte slice of exactly size bytes, or ErrExhausted.
	Alloc(size int) ([]byte, error)

	// Free releases a slice previously returned by Alloc. Implementations
	// that rely on the garbage collector may treat this as a no-op.
	Free(buf []byte)

	// Stats reports cumulative allocation counters.
	Stats() Stats
}

// Stats holds cumulative counters common to every Allocator
// implementation in this package.
type Stats struct {
	Allocs    int64
	Frees     int64
	BytesUsed int64
}
