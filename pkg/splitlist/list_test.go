// pkg/splitlist/list_test.go
package splitlist

import (
	"fmt"
	"sync"
	"testing"

	"lfmap/pkg/ebr"
)

func TestListInsertGetDelete(t *testing.T) {
	l := New()
	mgr := ebr.NewManager(nil)
	slot := mgr.Register()
	defer mgr.Unregister(slot)

	n := NewNode(42, "hello")
	mgr.Enter(slot)
	result, _, replaced := Insert(l.Head, n, mgr, slot)
	mgr.Exit(slot)
	if replaced {
		t.Fatalf("first insert of a fresh key reported a replace")
	}
	if result.LoadValue() != "hello" {
		t.Fatalf("got %v, want hello", result.LoadValue())
	}

	mgr.Enter(slot)
	_, _, cur, exact := Find(l.Head, RegularSoKey(42), mgr, slot)
	mgr.Exit(slot)
	if !exact || cur.Key != 42 || cur.LoadValue() != "hello" {
		t.Fatalf("Find after Insert: exact=%v cur=%+v", exact, cur)
	}

	mgr.Enter(slot)
	val, ok := Delete(l.Head, RegularSoKey(42), 42, mgr, slot)
	mgr.Exit(slot)
	if !ok || val != "hello" {
		t.Fatalf("Delete: got (%v, %v), want (hello, true)", val, ok)
	}

	mgr.Enter(slot)
	_, _, _, exact = Find(l.Head, RegularSoKey(42), mgr, slot)
	mgr.Exit(slot)
	if exact {
		t.Fatalf("key still found after delete")
	}
}

func TestListInsertUpdatesInPlace(t *testing.T) {
	l := New()
	mgr := ebr.NewManager(nil)
	slot := mgr.Register()
	defer mgr.Unregister(slot)

	mgr.Enter(slot)
	Insert(l.Head, NewNode(7, "v1"), mgr, slot)
	mgr.Exit(slot)

	mgr.Enter(slot)
	result, old, replaced := Insert(l.Head, NewNode(7, "v2"), mgr, slot)
	mgr.Exit(slot)

	if !replaced {
		t.Fatalf("second insert of an existing key did not report a replace")
	}
	if old != "v1" {
		t.Fatalf("replaced value = %v, want v1", old)
	}
	if result.LoadValue() != "v2" {
		t.Fatalf("current value = %v, want v2", result.LoadValue())
	}
}

func TestListDeleteMissingKey(t *testing.T) {
	l := New()
	mgr := ebr.NewManager(nil)
	slot := mgr.Register()
	defer mgr.Unregister(slot)

	mgr.Enter(slot)
	_, ok := Delete(l.Head, RegularSoKey(99), 99, mgr, slot)
	mgr.Exit(slot)
	if ok {
		t.Fatalf("Delete of a never-inserted key reported success")
	}
}

func TestListManyKeysOrderedTraversal(t *testing.T) {
	l := New()
	mgr := ebr.NewManager(nil)
	slot := mgr.Register()
	defer mgr.Unregister(slot)

	n := 2000
	for i := 0; i < n; i++ {
		mgr.Enter(slot)
		Insert(l.Head, NewNode(uint64(i), fmt.Sprintf("v%d", i)), mgr, slot)
		mgr.Exit(slot)
	}

	seen := make(map[uint64]bool, n)
	var lastSoKey uint64
	first := true
	l.Walk(func(node *Node) bool {
		if !first && node.SoKey < lastSoKey {
			t.Fatalf("list not in split order: %d before %d", lastSoKey, node.SoKey)
		}
		first = false
		lastSoKey = node.SoKey
		seen[node.Key] = true
		return true
	})

	if len(seen) != n {
		t.Fatalf("walked %d distinct keys, want %d", len(seen), n)
	}
	for i := 0; i < n; i++ {
		if !seen[uint64(i)] {
			t.Fatalf("key %d missing from walk", i)
		}
	}
}

func TestListConcurrentInsertDeleteDistinctKeys(t *testing.T) {
	l := New()
	mgr := ebr.NewManager(nil)

	const goroutines = 8
	const perGoroutine = 500

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			slot := mgr.Register()
			defer mgr.Unregister(slot)
			for i := 0; i < perGoroutine; i++ {
				key := uint64(base*perGoroutine + i)
				mgr.Enter(slot)
				Insert(l.Head, NewNode(key, key), mgr, slot)
				mgr.Exit(slot)
			}
			for i := 0; i < perGoroutine; i += 2 {
				key := uint64(base*perGoroutine + i)
				mgr.Enter(slot)
				Delete(l.Head, RegularSoKey(key), key, mgr, slot)
				mgr.Exit(slot)
			}
		}(g)
	}
	wg.Wait()

	slot := mgr.Register()
	defer mgr.Unregister(slot)
	for g := 0; g < goroutines; g++ {
		for i := 0; i < perGoroutine; i++ {
			key := uint64(g*perGoroutine + i)
			mgr.Enter(slot)
			_, _, _, exact := Find(l.Head, RegularSoKey(key), mgr, slot)
			mgr.Exit(slot)
			wantExact := i%2 != 0
			if exact != wantExact {
				t.Fatalf("key %d: exact=%v, want %v", key, exact, wantExact)
			}
		}
	}
}

func TestDummyInsertDeduplicates(t *testing.T) {
	l := New()
	mgr := ebr.NewManager(nil)
	slot := mgr.Register()
	defer mgr.Unregister(slot)

	mgr.Enter(slot)
	first, _, _ := Insert(l.Head, NewDummy(5), mgr, slot)
	mgr.Exit(slot)

	mgr.Enter(slot)
	second, _, replaced := Insert(l.Head, NewDummy(5), mgr, slot)
	mgr.Exit(slot)

	if replaced {
		t.Fatalf("dummy collision reported as a replace")
	}
	if first != second {
		t.Fatalf("second dummy insert did not return the existing dummy")
	}
}
