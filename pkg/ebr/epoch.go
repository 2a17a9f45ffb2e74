// pkg/ebr/epoch.go
package ebr

import (
	"sync/atomic"
)

// EpochCount is the number of retire bins in the three-epoch scheme. It is
// an invariant of the algorithm, not a tunable.
const EpochCount = 3

// MaxThreads bounds the number of threads that may be concurrently
// registered with a Manager. It is a compile-time cap: Manager carries a
// fixed-size slot array rather than a growable slice, so registering past
// this bound fails rather than reallocating under readers.
const MaxThreads = 64

// noEpoch is the sentinel published by a slot that is not inside a
// critical section — always greater than any real epoch value for the
// purposes of try-advance's comparison.
const noEpoch = ^uint64(0)

// Slot identifies a thread's (goroutine's) registered entry in a Manager.
// It must be obtained once via Register and retained for the duration of
// that thread's use of the reclaimed structure.
type Slot int

// NoSlot is returned by Register when every slot is in use, and is a
// valid argument to a caller's own "no registration" fallback path.
const NoSlot Slot = -1

// FreeFunc releases a single retired value. It is invoked exactly once
// per retired object, strictly after it is safe to do so. It must not
// dereference any payload owned by the caller — only the structural
// memory handed to Retire.
type FreeFunc func(obj any)

type slotState struct {
	active int32  // atomic: 1 = registered and in use
	epoch  uint64 // atomic: last-observed global epoch, or noEpoch

	// retire holds this slot's three per-epoch retire bins. Only the
	// goroutine holding this slot ever appends to or drains these —
	// single-writer, so no lock is needed on the hot path.
	retire [EpochCount][]any
}

// Manager is a three-epoch reclamation engine: a monotone global epoch,
// a fixed table of per-thread observed epochs, and per-thread retire
// bins indexed by epoch mod EpochCount. See pkg/lfmap for how the split
// list and bucket array use it to defer physical frees until no reader
// can still observe the retired node.
type Manager struct {
	globalEpoch uint64 // atomic
	slots       [MaxThreads]slotState
	freeFn      FreeFunc
}

// NewManager creates a reclamation engine. freeFn is called once per
// retired object when it becomes safe to release; a nil freeFn makes
// reclaim a no-op drop (fine when Go's GC alone is sufficient).
func NewManager(freeFn FreeFunc) *Manager {
	if freeFn == nil {
		freeFn = func(any) {}
	}
	return &Manager{freeFn: freeFn}
}

// Register claims a free slot for the calling thread, publishing the
// current global epoch as its initial observed epoch. Returns NoSlot if
// every slot of MaxThreads is already active.
func (m *Manager) Register() Slot {
	for i := range m.slots {
		if atomic.CompareAndSwapInt32(&m.slots[i].active, 0, 1) {
			atomic.StoreUint64(&m.slots[i].epoch, atomic.LoadUint64(&m.globalEpoch))
			return Slot(i)
		}
	}
	return NoSlot
}

// Unregister drains the slot's three retire lists — freeing them
// immediately, since only this thread ever wrote them — then releases
// the slot for reuse. Idempotent: calling it twice on an already-cleared
// slot is a safe no-op.
func (m *Manager) Unregister(slot Slot) {
	if !m.validSlot(slot) {
		return
	}
	s := &m.slots[slot]
	m.drain(s)
	atomic.StoreUint64(&s.epoch, noEpoch)
	atomic.StoreInt32(&s.active, 0)
}

// Enter begins a critical section for slot, returning the epoch the
// caller observed. The caller must pair this with Exit and must not
// retain references to anything it reads past the matching Exit.
func (m *Manager) Enter(slot Slot) uint64 {
	if !m.validSlot(slot) {
		return atomic.LoadUint64(&m.globalEpoch)
	}
	observed := atomic.LoadUint64(&m.globalEpoch)
	atomic.StoreUint64(&m.slots[slot].epoch, observed)

	m.tryAdvance()

	if observed >= 2 {
		m.freeBin(&m.slots[slot], int((observed-2)%EpochCount))
	}
	return observed
}

// Exit ends the critical section begun by Enter, publishing the
// sentinel epoch so try-advance no longer waits on this slot.
func (m *Manager) Exit(slot Slot) {
	if !m.validSlot(slot) {
		return
	}
	atomic.StoreUint64(&m.slots[slot].epoch, noEpoch)
}

// Guard is a critical section opened by EnterGuard, released by calling
// Exit exactly once. It exists so a caller can hold a single value
// (rather than a bare Manager/Slot pair) across the traversal it
// protects, pairing an entered epoch with its own release the way a
// reader session pairs an acquire with a matching release.
type Guard struct {
	mgr    *Manager
	slot   Slot
	epoch  uint64
	exited bool
}

// EnterGuard begins a critical section for slot and returns a Guard
// wrapping it. Equivalent to Enter, but bundles the epoch it observed
// with the means to close it, so the caller cannot exit the wrong slot
// or forget which epoch it entered at.
func (m *Manager) EnterGuard(slot Slot) *Guard {
	return &Guard{mgr: m, slot: slot, epoch: m.Enter(slot)}
}

// Epoch returns the global epoch observed when this Guard was opened.
func (g *Guard) Epoch() uint64 {
	return g.epoch
}

// Exit ends the critical section. Idempotent: calling it more than
// once is a safe no-op.
func (g *Guard) Exit() {
	if g.exited {
		return
	}
	g.exited = true
	g.mgr.Exit(g.slot)
}

// Retire hands obj to the engine for deferred release. It is pushed onto
// slot's bin for the current global epoch; reclamation happens once two
// further global-epoch advances have occurred. If slot is invalid (the
// caller skipped registration), obj is freed eagerly — an unsafe
// fallback for register-less callers.
func (m *Manager) Retire(slot Slot, obj any) {
	if !m.validSlot(slot) {
		m.freeFn(obj)
		return
	}
	idx := atomic.LoadUint64(&m.globalEpoch) % EpochCount
	s := &m.slots[slot]
	s.retire[idx] = append(s.retire[idx], obj)
}

// tryAdvance re-reads the global epoch and, if every active slot has
// observed it (or is quiescent), attempts to advance it by one. It never
// frees an active slot's bins — freeing the newly-safe bin is each active
// slot's own responsibility, performed opportunistically on its next
// Enter. After a successful advance it does free the newly-safe bin of
// every slot it finds inactive, since no thread owns them.
func (m *Manager) tryAdvance() {
	g := atomic.LoadUint64(&m.globalEpoch)

	for i := range m.slots {
		s := &m.slots[i]
		if atomic.LoadInt32(&s.active) == 0 {
			continue
		}
		e := atomic.LoadUint64(&s.epoch)
		if e != noEpoch && e < g {
			return
		}
	}

	if !atomic.CompareAndSwapUint64(&m.globalEpoch, g, g+1) {
		return
	}

	if g < 1 {
		return
	}
	safeIdx := int((g - 1) % EpochCount)
	for i := range m.slots {
		if atomic.LoadInt32(&m.slots[i].active) == 0 {
			m.freeBin(&m.slots[i], safeIdx)
		}
	}
}

// freeBin releases every object in s's bin at idx and clears it. Callers
// must only ever invoke this for a slot they own (or one they've
// confirmed is inactive), matching the engine's single-writer-per-bin
// discipline.
func (m *Manager) freeBin(s *slotState, idx int) {
	bin := s.retire[idx]
	if len(bin) == 0 {
		return
	}
	s.retire[idx] = nil
	for _, obj := range bin {
		m.freeFn(obj)
	}
}

func (m *Manager) drain(s *slotState) {
	for i := 0; i < EpochCount; i++ {
		m.freeBin(s, i)
	}
}

// Destroy drains every slot's pending retire lists immediately. The
// caller guarantees quiescence (no concurrent readers) — this is the
// engine half of the map's Destroy operation.
func (m *Manager) Destroy() {
	for i := range m.slots {
		m.drain(&m.slots[i])
	}
}

// CurrentEpoch returns the current global epoch.
func (m *Manager) CurrentEpoch() uint64 {
	return atomic.LoadUint64(&m.globalEpoch)
}

// PendingCount returns the total number of retired-but-not-yet-freed
// objects across all slots. It is an eventually-consistent estimate
// useful for metrics and tests, not a synchronization point.
func (m *Manager) PendingCount() int {
	n := 0
	for i := range m.slots {
		for j := 0; j < EpochCount; j++ {
			n += len(m.slots[i].retire[j])
		}
	}
	return n
}

// ActiveCount returns the number of currently registered slots.
func (m *Manager) ActiveCount() int {
	n := 0
	for i := range m.slots {
		if atomic.LoadInt32(&m.slots[i].active) == 1 {
			n++
		}
	}
	return n
}

func (m *Manager) validSlot(slot Slot) bool {
	return slot >= 0 && int(slot) < MaxThreads && atomic.LoadInt32(&m.slots[slot].active) == 1
}
