// pkg/splitlist/hash.go
package splitlist

import "math/bits"

// Hash64 mixes key with the splitmix64 finalizer, giving a full-avalanche
// 64-to-64 bit hash — more than sufficient to distribute keys across
// buckets and to seed the split-ordered key below.
func Hash64(key uint64) uint64 {
	key ^= key >> 30
	key *= 0xbf58476d1ce4e5b9
	key ^= key >> 27
	key *= 0x94d049bb133111eb
	key ^= key >> 31
	return key
}

// ReverseBits reverses the bit order of x (MSB <-> LSB). Used both to
// derive a payload node's split-ordered key from its hash, and a
// bucket's split-ordered key from its index — the identity at the heart
// of split ordering: doubling capacity splits bucket b into b and
// b+oldCap without moving a single element, because reversing the index
// bits places the new dummy exactly at the split point.
func ReverseBits(x uint64) uint64 {
	return bits.Reverse64(x)
}

// RegularSoKey computes the split-ordered key for a payload node holding
// key. The LSB is forced to 1 so that, for any bucket, the dummy
// sentinel (LSB 0) always sorts before every payload node mapped to it.
func RegularSoKey(key uint64) uint64 {
	return ReverseBits(Hash64(key)) | 1
}

// DummySoKey computes the split-ordered key for the dummy sentinel of
// bucket idx. The LSB is 0.
func DummySoKey(idx uint64) uint64 {
	return ReverseBits(idx)
}

// ParentBucket returns the bucket whose dummy must be materialized
// before idx's can be — idx with its highest set bit cleared. Bucket 0
// is its own parent (the recursion's base case).
func ParentBucket(idx uint64) uint64 {
	if idx == 0 {
		return 0
	}
	msb := uint64(1) << (63 - bits.LeadingZeros64(idx))
	return idx &^ msb
}
