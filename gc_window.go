package main

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// gcPauseWindow reports GC pauses that happened between two stats refreshes.
// displayStats owns it and calls snapshot from a single goroutine.
type gcPauseWindow struct {
	lastNumGC   uint32
	initialized bool
}

// snapshot returns the p99 of pauses recorded since the previous call and how
// many were considered. When more GCs ran than runtime.MemStats keeps, only
// the retained pauses count and truncated is set.
func (w *gcPauseWindow) snapshot(mem *runtime.MemStats) (p99 time.Duration, count int, truncated bool) {
	if mem == nil {
		return 0, 0, false
	}
	prev, first := w.lastNumGC, !w.initialized
	w.lastNumGC, w.initialized = mem.NumGC, true
	if first || mem.NumGC <= prev {
		return 0, 0, false
	}
	ring := len(mem.PauseNs)
	fresh := int(mem.NumGC - prev)
	if fresh > ring {
		fresh, truncated = ring, true
	}
	pauses := make([]uint64, 0, fresh)
	for i := 0; i < fresh; i++ {
		// PauseNs[(NumGC+255)%256] is the most recent pause.
		idx := (int(mem.NumGC) - 1 - i) % ring
		if idx < 0 {
			idx += ring
		}
		if v := mem.PauseNs[idx]; v > 0 {
			pauses = append(pauses, v)
		}
	}
	if len(pauses) == 0 {
		return 0, 0, truncated
	}
	sort.Slice(pauses, func(i, j int) bool { return pauses[i] < pauses[j] })
	return time.Duration(pauses[int(float64(len(pauses)-1)*0.99)]), len(pauses), truncated
}

// line renders heap size and the GC pause window for the status pane.
func (w *gcPauseWindow) line(mem *runtime.MemStats) string {
	p99, count, truncated := w.snapshot(mem)
	gc := "GC idle"
	if count > 0 {
		gc = fmt.Sprintf("GC p99=%s (n=%d", p99.Round(time.Microsecond), count)
		if truncated {
			gc += ", truncated"
		}
		gc += ")"
	}
	return fmt.Sprintf("Runtime: heap=%s goroutines=%d %s", humanize.Bytes(mem.HeapAlloc), runtime.NumGoroutine(), gc)
}
