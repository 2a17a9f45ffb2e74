// pkg/splitlist/node.go
package splitlist

import (
	"sync/atomic"
	"unsafe"
)

// Node is one entry in the split-ordered list: either a payload node
// (holding a key/value pair) or a dummy (bucket sentinel, keyless).
//
// Go's garbage collector requires every live unsafe.Pointer to reference
// a valid object — it cannot tolerate a tagged low bit the way the
// reference C implementation tags `next` directly. This package uses a
// portable alternative instead: `next` holds a pointer to a small
// immutable nextState wrapping (successor, mark-bit), so the single CAS
// on a node's next pointer becomes a single CAS of that wrapper pointer.
type Node struct {
	Key     uint64 // 0 reserved for dummies
	SoKey   uint64 // split-ordered key
	IsDummy bool

	value unsafe.Pointer // *box; nil means "no value"
	next  unsafe.Pointer // *nextState; never nil once constructed
}

type box struct {
	v any
}

// nextState is the (pointer, mark) pair used as the portable
// replacement for a tagged pointer.
type nextState struct {
	next   *Node
	marked bool
}

func newNextPtr(n *Node, marked bool) unsafe.Pointer {
	return unsafe.Pointer(&nextState{next: n, marked: marked})
}

// NewNode creates a payload node for key/value. Its split-ordered key is
// the bit-reversed hash of key with the LSB forced to 1.
func NewNode(key uint64, value any) *Node {
	n := &Node{Key: key, SoKey: RegularSoKey(key)}
	atomic.StorePointer(&n.next, newNextPtr(nil, false))
	atomic.StorePointer(&n.value, unsafe.Pointer(&box{v: value}))
	return n
}

// NewDummy creates the sentinel node for bucket idx. Its split-ordered
// key is the bit-reversed bucket index, LSB 0.
func NewDummy(bucket uint64) *Node {
	n := &Node{SoKey: DummySoKey(bucket), IsDummy: true}
	atomic.StorePointer(&n.next, newNextPtr(nil, false))
	return n
}

// NewHead creates the list's embedded head sentinel: so_key 0, dummy,
// never removed.
func NewHead() *Node {
	n := &Node{IsDummy: true}
	atomic.StorePointer(&n.next, newNextPtr(nil, false))
	return n
}

// LoadValue atomically reads the node's current value, or nil if unset
// (dummies, or a node awaiting its first Store).
func (n *Node) LoadValue() any {
	p := atomic.LoadPointer(&n.value)
	if p == nil {
		return nil
	}
	return (*box)(p).v
}

// SwapValue atomically replaces the node's value, returning the prior
// one (nil if there was none).
func (n *Node) SwapValue(v any) any {
	old := atomic.SwapPointer(&n.value, unsafe.Pointer(&box{v: v}))
	if old == nil {
		return nil
	}
	return (*box)(old).v
}

// rawNext loads the current (pointer, mark) pair for n.next.
func (n *Node) rawNext() (raw unsafe.Pointer, next *Node, marked bool) {
	raw = atomic.LoadPointer(&n.next)
	ns := (*nextState)(raw)
	return raw, ns.next, ns.marked
}
