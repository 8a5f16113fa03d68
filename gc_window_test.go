package main

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGCPauseWindowFirstSnapshotPrimes(t *testing.T) {
	var mem runtime.MemStats
	mem.NumGC = 5
	mem.PauseNs[0] = 10
	mem.PauseNs[1] = 20

	var window gcPauseWindow
	for i := 0; i < 2; i++ {
		if p99, count, truncated := window.snapshot(&mem); count != 0 || truncated || p99 != 0 {
			t.Fatalf("call %d: expected no data, got p99=%v count=%d truncated=%v", i, p99, count, truncated)
		}
	}
}

func TestGCPauseWindowCountsOnlyNewPauses(t *testing.T) {
	var mem runtime.MemStats
	mem.NumGC = 2
	mem.PauseNs[0] = 5
	mem.PauseNs[1] = 7

	var window gcPauseWindow
	_, _, _ = window.snapshot(&mem)

	mem.NumGC = 5
	mem.PauseNs[2] = 10
	mem.PauseNs[3] = 20
	mem.PauseNs[4] = 30

	p99, count, truncated := window.snapshot(&mem)
	if truncated || count != 3 {
		t.Fatalf("expected 3 untruncated pauses, got %d truncated=%v", count, truncated)
	}
	if want := 20 * time.Nanosecond; p99 != want {
		t.Fatalf("expected p99 %v, got %v", want, p99)
	}
}

func TestGCPauseWindowTruncatesToRing(t *testing.T) {
	var mem runtime.MemStats
	var window gcPauseWindow
	_, _, _ = window.snapshot(&mem)

	mem.NumGC = 300
	for i := range mem.PauseNs {
		mem.PauseNs[i] = 50
	}
	p99, count, truncated := window.snapshot(&mem)
	if !truncated || count != len(mem.PauseNs) {
		t.Fatalf("expected truncation to %d pauses, got %d truncated=%v", len(mem.PauseNs), count, truncated)
	}
	if p99 != 50*time.Nanosecond {
		t.Fatalf("expected p99 50ns, got %v", p99)
	}
}

func TestGCPauseWindowLine(t *testing.T) {
	var mem runtime.MemStats
	mem.HeapAlloc = 3 * 1000 * 1000
	var window gcPauseWindow
	if got := window.line(&mem); !strings.HasPrefix(got, "Runtime: heap=3.0 MB") || !strings.HasSuffix(got, "GC idle") {
		t.Fatalf("unexpected runtime line %q", got)
	}
}
