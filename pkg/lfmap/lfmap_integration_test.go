// pkg/lfmap/lfmap_integration_test.go
package lfmap_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"lfmap/pkg/lfmap"
)

// TestStatsSnapshotDiffAcrossPutAndRemove exercises Stats as an
// external observer would: take a snapshot, mutate the map through its
// public API only, take another snapshot, and diff the two. This stays
// outside the lfmap package (note the _test package suffix) so the
// diffing dependency never leaks into the core's own test binary.
func TestStatsSnapshotDiffAcrossPutAndRemove(t *testing.T) {
	m := lfmap.New()
	slot, err := m.ThreadRegister()
	if err != nil {
		t.Fatalf("ThreadRegister: %v", err)
	}
	defer m.ThreadUnregister(slot)

	before := m.Stats()

	for key := uint64(1); key <= 50; key++ {
		if _, err := m.PutSlot(key, key, slot); err != nil {
			t.Fatalf("Put(%d): %v", key, err)
		}
	}

	afterPuts := m.Stats()
	if diff := cmp.Diff(before.Count+50, afterPuts.Count); diff != "" {
		t.Fatalf("Count snapshot diff (-want +got):\n%s", diff)
	}
	if afterPuts.Capacity < before.Capacity {
		t.Fatalf("Capacity shrank across puts: before=%d after=%d", before.Capacity, afterPuts.Capacity)
	}

	for key := uint64(1); key <= 50; key++ {
		if _, _, err := m.RemoveSlot(key, slot); err != nil {
			t.Fatalf("Remove(%d): %v", key, err)
		}
	}

	afterRemoves := m.Stats()
	want := lfmap.Stats{Count: before.Count, Capacity: afterPuts.Capacity}
	ignoreEngineFields := cmpopts.IgnoreFields(lfmap.Stats{}, "ActiveThreads", "PendingRetirements")
	if diff := cmp.Diff(want, afterRemoves, ignoreEngineFields); diff != "" {
		t.Fatalf("Stats snapshot diff after removal (-want +got):\n%s", diff)
	}
}
