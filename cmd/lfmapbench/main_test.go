// cmd/lfmapbench/main_test.go
package main

import (
	"testing"

	"lfmap/internal/allocator"
)

func TestRunCompletesWithoutError(t *testing.T) {
	if err := run(4, 500, 3, allocator.NewHeapAllocator()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunWithRemovalDisabled(t *testing.T) {
	if err := run(2, 200, 0, allocator.NewHeapAllocator()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunWithMmapAllocator(t *testing.T) {
	if err := run(2, 200, 3, allocator.NewMmapAllocator(1<<20)); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestNewAllocatorRejectsUnknownKind(t *testing.T) {
	if _, err := newAllocator("does-not-exist"); err == nil {
		t.Fatalf("newAllocator: expected error for unknown kind")
	}
}
