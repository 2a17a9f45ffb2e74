// pkg/lfmap/lfmap.go
package lfmap

import (
	"errors"
	"sync/atomic"
	"unsafe"

	"lfmap/pkg/ebr"
	"lfmap/pkg/splitlist"
)

var (
	// ErrInvalidKey is returned by Put, Get, and Remove for key 0, which
	// is reserved so that a dummy's keyless zero value can never collide
	// with a payload node's key.
	ErrInvalidKey = errors.New("lfmap: key 0 is reserved")

	// ErrNoFreeSlot is returned by ThreadRegister when ebr.MaxThreads
	// registrations are already active.
	ErrNoFreeSlot = errors.New("lfmap: no free thread slot")
)

// Config tunes a Map's bucket growth. The zero value is invalid; use
// DefaultConfig or fill in both fields explicitly.
type Config struct {
	// InitCap is the bucket array's starting size. Must be a power of
	// two.
	InitCap uint64

	// LoadFactorPct is the percent-of-capacity occupancy that triggers a
	// doubling: a put that raises count such that count*100 >=
	// capacity*LoadFactorPct causes one resize attempt.
	LoadFactorPct uint64
}

// DefaultConfig matches the reference implementation's constants.
func DefaultConfig() Config {
	return Config{InitCap: 16, LoadFactorPct: 75}
}

// Map is a split-ordered lock-free hash map keyed by non-zero uint64s,
// reclaimed by an embedded EBR engine. See pkg/splitlist for the
// underlying sorted chain and pkg/ebr for the reclamation engine.
//
// A zero Map is not usable; construct one with New.
type Map struct {
	list    *splitlist.List
	buckets unsafe.Pointer // *bucketArray
	cap     uint64         // atomic, mirrors len(*buckets)
	count   int64          // atomic, payload nodes only
	config  Config
	mgr     *ebr.Manager
}

// bucketArray is the resizable shortcut table. Each slot is either nil
// (bucket not yet materialized) or points at the dummy sentinel that
// begins that bucket's region of the list.
type bucketArray struct {
	slots []unsafe.Pointer // *splitlist.Node, accessed via atomic CAS/Load
}

// New creates a Map with DefaultConfig.
func New() *Map {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Map with custom tuning. Panics if InitCap is
// not a power of two, matching the reference implementation's
// compile-time invariant rather than silently rounding.
func NewWithConfig(cfg Config) *Map {
	if cfg.InitCap == 0 || cfg.InitCap&(cfg.InitCap-1) != 0 {
		panic("lfmap: InitCap must be a power of two")
	}

	list := splitlist.New()
	ba := &bucketArray{slots: make([]unsafe.Pointer, cfg.InitCap)}
	ba.slots[0] = unsafe.Pointer(list.Head)

	m := &Map{
		list:   list,
		config: cfg,
	}
	atomic.StorePointer(&m.buckets, unsafe.Pointer(ba))
	atomic.StoreUint64(&m.cap, cfg.InitCap)
	m.mgr = ebr.NewManager(func(obj any) {
		_ = obj // let the garbage collector reclaim it; no external allocator in play
	})
	return m
}

func (m *Map) loadBuckets() *bucketArray {
	return (*bucketArray)(atomic.LoadPointer(&m.buckets))
}

// ThreadRegister claims an EBR slot for the calling goroutine. Every
// goroutine that uses the map concurrently with others must register
// once, pass its slot to PutSlot/GetSlot/RemoveSlot for the duration of
// its use of the map, then ThreadUnregister. PutSlot/GetSlot/RemoveSlot
// accept ebr.NoSlot (which is what Put/Get/Remove pass) for
// single-goroutine or register-less use, falling back to eager free on
// retire — an escape hatch that is only safe when no other goroutine
// can be mid-traversal.
func (m *Map) ThreadRegister() (ebr.Slot, error) {
	slot := m.mgr.Register()
	if slot == ebr.NoSlot {
		return ebr.NoSlot, ErrNoFreeSlot
	}
	return slot, nil
}

// ThreadUnregister releases a slot obtained from ThreadRegister.
func (m *Map) ThreadUnregister(slot ebr.Slot) {
	m.mgr.Unregister(slot)
}

// bucketIndex computes hash(key) & (cap-1) against the given capacity.
func bucketIndex(key, cap uint64) uint64 {
	return splitlist.Hash64(key) & (cap - 1)
}

// initializeBucket ensures buckets[idx] holds a dummy, materializing its
// parent first. It is the lazy counterpart of an eagerly allocated
// bucket array: every region of the list the map will ever address
// exists only once something actually hashes there. slot is the calling
// goroutine's own EBR slot (or ebr.NoSlot), threaded through so any node
// this traversal physically unlinks along the way is retired into the
// caller's own epoch-protected bin rather than always falling back to
// eager free.
func (m *Map) initializeBucket(idx uint64, slot ebr.Slot) *splitlist.Node {
	ba := m.loadBuckets()
	cap := atomic.LoadUint64(&m.cap)

	if idx >= cap {
		return nil
	}
	if existing := atomic.LoadPointer(&ba.slots[idx]); existing != nil {
		return (*splitlist.Node)(existing)
	}

	parent := splitlist.ParentBucket(idx)
	var parentDummy *splitlist.Node
	if parent != idx {
		parentDummy = m.initializeBucket(parent, slot)
	} else {
		parentDummy = m.list.Head
	}
	if parentDummy == nil {
		return nil
	}

	dummy := splitlist.NewDummy(idx)
	inserted, _, _ := splitlist.Insert(m.list.Head, dummy, m.mgr, slot)

	if !atomic.CompareAndSwapPointer(&ba.slots[idx], nil, unsafe.Pointer(inserted)) {
		// A racing thread initialized it first; defer to whatever it
		// published rather than treat this as an error.
	}
	return (*splitlist.Node)(atomic.LoadPointer(&ba.slots[idx]))
}

// bucketHead returns the node to start a find from for key, initializing
// its bucket on demand. Falls back to the list head if initializeBucket
// returns nil (idx outside the capacity it loaded) — the caller just
// searches the whole list instead of failing. slot is forwarded to
// initializeBucket so its own retires stay epoch-protected under the
// caller's registration.
func (m *Map) bucketHead(key uint64, slot ebr.Slot) *splitlist.Node {
	cap := atomic.LoadUint64(&m.cap)
	idx := bucketIndex(key, cap)
	dummy := m.initializeBucket(idx, slot)
	if dummy == nil {
		return m.list.Head
	}
	return dummy
}

// Put is the slot-free convenience form of PutSlot: it skips epoch
// enter/exit entirely, the documented fallback for callers that have
// not registered a thread. Safe only when no concurrent goroutine might
// be mid-traversal of a node this call could unlink.
func (m *Map) Put(key uint64, value any) (previous any, err error) {
	return m.PutSlot(key, value, ebr.NoSlot)
}

// PutSlot inserts key/value, or atomically replaces the value of an
// existing key, returning the value it replaced (nil for a fresh
// insertion). Key 0 is rejected with ErrInvalidKey.
func (m *Map) PutSlot(key uint64, value any, slot ebr.Slot) (previous any, err error) {
	if key == 0 {
		return nil, ErrInvalidKey
	}

	g := m.mgr.EnterGuard(slot)
	defer g.Exit()

	head := m.bucketHead(key, slot)
	n := splitlist.NewNode(key, value)
	_, old, replaced := splitlist.Insert(head, n, m.mgr, slot)
	if replaced {
		return old, nil
	}

	atomic.AddInt64(&m.count, 1)
	m.maybeResize(slot)
	return nil, nil
}

// Get is the slot-free convenience form of GetSlot (see Put).
func (m *Map) Get(key uint64) (value any, ok bool, err error) {
	return m.GetSlot(key, ebr.NoSlot)
}

// GetSlot returns the value stored for key, or (nil, false) if absent.
// Key 0 is rejected with ErrInvalidKey.
func (m *Map) GetSlot(key uint64, slot ebr.Slot) (value any, ok bool, err error) {
	if key == 0 {
		return nil, false, ErrInvalidKey
	}

	g := m.mgr.EnterGuard(slot)
	defer g.Exit()

	head := m.bucketHead(key, slot)
	_, _, cur, exact := splitlist.Find(head, splitlist.RegularSoKey(key), m.mgr, slot)
	if !exact || cur.IsDummy || cur.Key != key {
		return nil, false, nil
	}
	return cur.LoadValue(), true, nil
}

// Remove is the slot-free convenience form of RemoveSlot (see Put).
func (m *Map) Remove(key uint64) (previous any, ok bool, err error) {
	return m.RemoveSlot(key, ebr.NoSlot)
}

// RemoveSlot logically deletes key, returning its prior value and
// whether it was present. Key 0 is rejected with ErrInvalidKey.
func (m *Map) RemoveSlot(key uint64, slot ebr.Slot) (previous any, ok bool, err error) {
	if key == 0 {
		return nil, false, ErrInvalidKey
	}

	g := m.mgr.EnterGuard(slot)
	defer g.Exit()

	head := m.bucketHead(key, slot)
	val, ok := splitlist.Delete(head, splitlist.RegularSoKey(key), key, m.mgr, slot)
	if ok {
		atomic.AddInt64(&m.count, -1)
	}
	return val, ok, nil
}

// Count returns the current number of live payload nodes. It is exact
// with respect to completed Put/Remove calls but may be stale relative
// to ones racing with it.
func (m *Map) Count() int64 {
	return atomic.LoadInt64(&m.count)
}

// Capacity returns the current bucket array size.
func (m *Map) Capacity() uint64 {
	return atomic.LoadUint64(&m.cap)
}

// Stats is a point-in-time snapshot of a Map's size and the state of its
// embedded reclamation engine, meant for diagnostics and tests rather
// than the hot path.
type Stats struct {
	Count              int64
	Capacity           uint64
	ActiveThreads      int
	PendingRetirements int
}

// Stats returns a snapshot of the map's current size and reclamation
// engine state. Each field is read independently, so a Stats value is
// not atomic as a whole with respect to concurrent mutation.
func (m *Map) Stats() Stats {
	return Stats{
		Count:              m.Count(),
		Capacity:           m.Capacity(),
		ActiveThreads:      m.mgr.ActiveCount(),
		PendingRetirements: m.mgr.PendingCount(),
	}
}

// maybeResize doubles the bucket array if the load factor threshold has
// been crossed. A losing CAS means a competitor resized first; the
// loser's freshly allocated array is simply dropped for the garbage
// collector, matching the reference implementation's
// never-retire-an-unpublished-array rule.
//
// slot is the calling goroutine's own EBR slot — the winner of the CAS
// retires oldBa through it, exactly like any other retired object, so
// the array is only freed after the usual two epoch advances rather
// than through a throwaway Register/Unregister pair that would drain
// it immediately.
func (m *Map) maybeResize(slot ebr.Slot) {
	count := uint64(atomic.LoadInt64(&m.count))
	cap := atomic.LoadUint64(&m.cap)

	if count*100 < cap*m.config.LoadFactorPct {
		return
	}

	newCap := cap * 2
	oldBa := m.loadBuckets()
	newBa := &bucketArray{slots: make([]unsafe.Pointer, newCap)}
	copy(newBa.slots, oldBa.slots)

	if atomic.CompareAndSwapPointer(&m.buckets, unsafe.Pointer(oldBa), unsafe.Pointer(newBa)) {
		atomic.StoreUint64(&m.cap, newCap)
		m.mgr.Retire(slot, oldBa)
	}
	// else: a competitor already resized; newBa is simply dropped.
}

// Destroy drains the reclamation engine and releases every node. The
// caller must guarantee quiescence: no concurrent Put/Get/Remove and no
// other goroutine still holding a registered slot.
func (m *Map) Destroy() {
	m.mgr.Destroy()
	m.list.Clear()
	atomic.StorePointer(&m.buckets, nil)
	atomic.StoreInt64(&m.count, 0)
}
