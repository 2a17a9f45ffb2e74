// pkg/splitlist/list.go
package splitlist

import (
	"sync/atomic"
	"unsafe"

	"lfmap/pkg/ebr"
)

// List is the single sorted chain underlying the map: one singly-linked
// list, ordered by ascending SoKey, rooted at an embedded head with
// so_key 0. It holds every live payload node and every materialized
// dummy; the bucket array (owned by pkg/lfmap) only ever points into it.
type List struct {
	Head *Node
}

// New creates an empty list with its head sentinel.
func New() *List {
	return &List{Head: NewHead()}
}

// Find searches for soKey starting at start (the map's head, or
// equivalently a bucket's own dummy). It physically unlinks any marked
// (logically deleted) node it passes over, retiring each one through
// mgr at slot.
//
// It returns the predecessor's next-field address and its last-observed
// raw value (for the caller's own CAS), the first node whose SoKey is
// >= soKey (or nil if none), and whether that node's SoKey matches
// exactly.
//
// On a successful in-traversal unlink, traversal continues from the same
// prevAddr rather than restarting — correct because prevAddr still names
// the field that CAS just replaced (restarting after every unlink is
// strictly more conservative and also correct, but unnecessary here).
func Find(start *Node, soKey uint64, mgr *ebr.Manager, slot ebr.Slot) (prevAddr *unsafe.Pointer, prevRaw unsafe.Pointer, cur *Node, exact bool) {
retry:
	prevAddr = &start.next
	prevRaw = atomic.LoadPointer(prevAddr)
	cur = (*nextState)(prevRaw).next

	for cur != nil {
		nextRaw, nextNode, marked := cur.rawNext()

		if marked {
			newRaw := newNextPtr(nextNode, false)
			if !atomic.CompareAndSwapPointer(prevAddr, prevRaw, newRaw) {
				goto retry
			}
			mgr.Retire(slot, cur)
			prevRaw = newRaw
			cur = nextNode
			continue
		}

		if cur.SoKey >= soKey {
			return prevAddr, prevRaw, cur, cur.SoKey == soKey
		}

		prevAddr = &cur.next
		prevRaw = nextRaw
		cur = nextNode
	}

	return prevAddr, prevRaw, nil, false
}

// Insert links n into the list in split-order, starting the search from
// start. Same-SoKey collisions with a distinct Key are permitted and
// simply get linked before the existing node; same-SoKey-and-Key for a
// payload node is treated as an update in place, returning the winning
// node and the value it replaced.
//
// For a dummy, a same-SoKey match always means the bucket was already
// materialized by a racing thread: the caller's n is discarded (left for
// the garbage collector) and the existing dummy is returned.
func Insert(start *Node, n *Node, mgr *ebr.Manager, slot ebr.Slot) (result *Node, replaced any, didReplace bool) {
	for {
		prevAddr, prevRaw, cur, exact := Find(start, n.SoKey, mgr, slot)

		if exact {
			if n.IsDummy {
				return cur, nil, false
			}
			if !cur.IsDummy && cur.Key == n.Key {
				old := cur.SwapValue(n.LoadValue())
				return cur, old, true
			}
			// so_key collision, distinct key: fall through and link
			// n immediately before cur.
		}

		atomic.StorePointer(&n.next, newNextPtr(cur, false))
		if atomic.CompareAndSwapPointer(prevAddr, prevRaw, newNextPtr(n, false)) {
			return n, nil, false
		}
		// Lost the race for this predecessor slot; retry from the top.
	}
}

// Delete logically deletes the payload node matching (soKey, key),
// returning its prior value. Returns (nil, false) if no such node is
// live. A single CAS marks the node, then a best-effort CAS swings the
// predecessor past it; the winner of that second CAS retires the node,
// the loser leaves it for a future Find to clean up.
func Delete(start *Node, soKey, key uint64, mgr *ebr.Manager, slot ebr.Slot) (value any, ok bool) {
	for {
		prevAddr, prevRaw, cur, exact := Find(start, soKey, mgr, slot)
		if !exact || cur.IsDummy || cur.Key != key {
			return nil, false
		}

		val := cur.LoadValue()
		nextRaw, nextNode, marked := cur.rawNext()
		if marked {
			return nil, false
		}

		markedRaw := newNextPtr(nextNode, true)
		if !atomic.CompareAndSwapPointer(&cur.next, nextRaw, markedRaw) {
			continue
		}

		if atomic.CompareAndSwapPointer(prevAddr, prevRaw, newNextPtr(nextNode, false)) {
			mgr.Retire(slot, cur)
		}
		return val, true
	}
}

// Clear severs the list at its head, leaving it empty. The caller must
// guarantee quiescence (no concurrent traversal can still be holding a
// reference into the chain); it is the teardown half of the map's
// Destroy, letting the garbage collector reclaim every node the head
// used to anchor.
func (l *List) Clear() {
	atomic.StorePointer(&l.Head.next, newNextPtr(nil, false))
}

// Walk invokes fn for every unmarked payload node reachable from the
// head, in split order, stopping early if fn returns false. The caller
// must guarantee quiescence (no concurrent mutation) — it is used for
// diagnostic counting and by tests, never on the hot path.
func (l *List) Walk(fn func(n *Node) bool) {
	cur := (*nextState)(atomic.LoadPointer(&l.Head.next)).next
	for cur != nil {
		_, next, marked := cur.rawNext()
		if !marked && !cur.IsDummy {
			if !fn(cur) {
				return
			}
		}
		cur = next
	}
}
