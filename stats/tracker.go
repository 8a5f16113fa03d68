// Package stats tracks poll tick outcomes and fetch latency for display in the
// dashboard status line and for Prometheus export.
package stats

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Outcome classifies how a single tick ended.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeTransport Outcome = "transport"
	OutcomeStatus    Outcome = "status"
	OutcomeDecode    Outcome = "decode"
	OutcomeStale     Outcome = "stale"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{OutcomeOK, OutcomeTransport, OutcomeStatus, OutcomeDecode, OutcomeStale}

// Tracker counts ticks and outcomes. Counters are atomics so fetch goroutines
// never contend on a mutex.
type Tracker struct {
	start       atomic.Int64
	ticks       atomic.Uint64
	ok          atomic.Uint64
	transport   atomic.Uint64
	status      atomic.Uint64
	decode      atomic.Uint64
	stale       atomic.Uint64
	repeats     atomic.Uint64
	lastSuccess atomic.Int64
	latency     *LatencyTracker
}

// NewTracker creates a new stats tracker.
func NewTracker() *Tracker {
	t := &Tracker{latency: NewLatencyTracker(256)}
	t.start.Store(time.Now().UnixNano())
	return t
}

// Tick counts one fired timer tick.
func (t *Tracker) Tick() {
	if t == nil {
		return
	}
	t.ticks.Add(1)
}

// Record counts a resolved tick and its fetch latency.
func (t *Tracker) Record(outcome Outcome, latency time.Duration, at time.Time) {
	if t == nil {
		return
	}
	if c := t.counter(outcome); c != nil {
		c.Add(1)
	}
	if outcome == OutcomeOK {
		t.lastSuccess.Store(at.UnixNano())
	}
	if outcome != OutcomeTransport || latency > 0 {
		t.latency.Observe(latency)
	}
}

// Repeat counts a successful payload byte-identical to the previous one.
func (t *Tracker) Repeat() {
	if t == nil {
		return
	}
	t.repeats.Add(1)
}

func (t *Tracker) counter(outcome Outcome) *atomic.Uint64 {
	switch outcome {
	case OutcomeOK:
		return &t.ok
	case OutcomeTransport:
		return &t.transport
	case OutcomeStatus:
		return &t.status
	case OutcomeDecode:
		return &t.decode
	case OutcomeStale:
		return &t.stale
	}
	return nil
}

// Ticks returns the number of fired ticks.
func (t *Tracker) Ticks() uint64 {
	if t == nil {
		return 0
	}
	return t.ticks.Load()
}

// Count returns the cumulative count for one outcome.
func (t *Tracker) Count(outcome Outcome) uint64 {
	if t == nil {
		return 0
	}
	if c := t.counter(outcome); c != nil {
		return c.Load()
	}
	return 0
}

// Repeats returns how many successful payloads were unchanged.
func (t *Tracker) Repeats() uint64 {
	if t == nil {
		return 0
	}
	return t.repeats.Load()
}

// LastSuccess returns the time of the last applied snapshot, zero if none.
func (t *Tracker) LastSuccess() time.Time {
	if t == nil {
		return time.Time{}
	}
	ns := t.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Latency returns fetch latency percentiles.
func (t *Tracker) Latency() LatencySnapshot {
	if t == nil {
		return LatencySnapshot{}
	}
	return t.latency.Snapshot()
}

// GetUptime returns how long the tracker has been running.
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines(now time.Time) []string {
	if t == nil {
		return nil
	}
	lines := make([]string, 0, 2)
	var b strings.Builder
	fmt.Fprintf(&b, "Ticks: %s", humanize.Comma(int64(t.Ticks())))
	for _, outcome := range Outcomes {
		fmt.Fprintf(&b, "  %s=%d", outcome, t.Count(outcome))
	}
	fmt.Fprintf(&b, "  repeat=%d", t.Repeats())
	lines = append(lines, b.String())

	lat := t.Latency()
	last := "never"
	if ts := t.LastSuccess(); !ts.IsZero() {
		last = humanize.RelTime(ts, now, "ago", "from now")
	}
	lines = append(lines, fmt.Sprintf("Fetch p50=%s p99=%s (n=%d)  Last update: %s",
		lat.P50.Round(time.Millisecond), lat.P99.Round(time.Millisecond), lat.N, last))
	return lines
}
