package ui

import (
	"fmt"
	"sync/atomic"
	"time"

	"pulseboard/stats"
)

// Metrics tracks UI-level counters and frame latency.
type Metrics struct {
	renderLatency *stats.LatencyTracker
	pageSwitches  atomic.Uint64
	dialogs       atomic.Uint64
}

func NewMetrics() *Metrics {
	return &Metrics{renderLatency: stats.NewLatencyTracker(512)}
}

func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.renderLatency.Observe(d)
}

func (m *Metrics) PageSwitch() {
	if m == nil {
		return
	}
	m.pageSwitches.Add(1)
}

func (m *Metrics) DialogShown() {
	if m == nil {
		return
	}
	m.dialogs.Add(1)
}

func (m *Metrics) RenderSnapshot() stats.LatencySnapshot {
	if m == nil {
		return stats.LatencySnapshot{}
	}
	return m.renderLatency.Snapshot()
}

func (m *Metrics) PageSwitches() uint64 {
	if m == nil {
		return 0
	}
	return m.pageSwitches.Load()
}

func (m *Metrics) Dialogs() uint64 {
	if m == nil {
		return 0
	}
	return m.dialogs.Load()
}

// Line renders the counters for the log page header.
func (m *Metrics) Line() string {
	r := m.RenderSnapshot()
	return fmt.Sprintf("UI frame p50=%s p99=%s  pages=%d  dialogs=%d",
		r.P50.Round(time.Microsecond), r.P99.Round(time.Microsecond), m.PageSwitches(), m.Dialogs())
}
