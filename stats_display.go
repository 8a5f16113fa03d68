package main

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"pulseboard/poller"
	"pulseboard/stats"
	"pulseboard/ui"
)

// tickObservers fans one poller observer out to several consumers. The first
// consumer is always the last-tick holder used by the status line.
type tickObservers struct {
	mu        sync.RWMutex
	last      *lastTick
	observers []poller.TickObserver
}

func newTickObservers(last *lastTick) *tickObservers {
	return &tickObservers{last: last, observers: []poller.TickObserver{last}}
}

func (t *tickObservers) Add(o poller.TickObserver) {
	if o == nil {
		return
	}
	t.mu.Lock()
	t.observers = append(t.observers, o)
	t.mu.Unlock()
}

func (t *tickObservers) ObserveTick(res poller.TickResult) {
	t.mu.RLock()
	observers := t.observers
	t.mu.RUnlock()
	for _, o := range observers {
		o.ObserveTick(res)
	}
}

// lastTick keeps the most recently resolved tick.
type lastTick struct {
	v atomic.Pointer[poller.TickResult]
}

func (l *lastTick) ObserveTick(res poller.TickResult) {
	l.v.Store(&res)
}

func (l *lastTick) Load() (poller.TickResult, bool) {
	if l == nil {
		return poller.TickResult{}, false
	}
	res := l.v.Load()
	if res == nil {
		return poller.TickResult{}, false
	}
	return *res, true
}

// formatLastTick renders the most recent tick for the status pane.
func formatLastTick(res poller.TickResult, ok bool, now time.Time) string {
	if !ok {
		return "Last tick: none yet"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last tick: #%d %s in %s", res.Seq, res.Outcome, res.Latency.Round(time.Millisecond))
	if res.StatusCode != 0 {
		fmt.Fprintf(&b, "  HTTP %d", res.StatusCode)
	}
	if res.Bytes > 0 {
		fmt.Fprintf(&b, "  %s", humanize.Bytes(uint64(res.Bytes)))
	}
	if res.Repeat {
		b.WriteString("  (unchanged)")
	}
	fmt.Fprintf(&b, "  %s", humanize.RelTime(res.ResolvedAt, now, "ago", "from now"))
	return b.String()
}

// statsLines assembles the status pane: poll counters, latency, runtime,
// the last tick and, when a dashboard runs, UI frame stats.
func statsLines(now time.Time, tracker *stats.Tracker, last *lastTick, uiMetrics *ui.Metrics, runtimeLine string) []string {
	lines := tracker.SnapshotLines(now)
	if runtimeLine != "" {
		lines = append(lines, runtimeLine)
	}
	res, ok := last.Load()
	lines = append(lines, formatLastTick(res, ok, now))
	if uiMetrics != nil {
		lines = append(lines, uiMetrics.Line())
	}
	return lines
}

// fileSink is the part of the log fanout the stats loop writes to.
type fileSink interface {
	WriteFileOnlyLine(line string, now time.Time)
}

// Purpose: Periodically refresh the status pane and archive a summary.
// Key aspects: The surface updates every interval; the log file gets one
// summary line every fileInterval so the console stays quiet.
// Upstream: main.
// Downstream: statsLines, ui.Surface.SetStats, logFanout.WriteFileOnlyLine.
func displayStats(ctx context.Context, interval, fileInterval time.Duration, tracker *stats.Tracker, last *lastTick, uiMetrics *ui.Metrics, surface interface{ SetStats([]string) }, file fileSink) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var (
		lastFile time.Time
		gc       gcPauseWindow
		mem      runtime.MemStats
	)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			runtime.ReadMemStats(&mem)
			lines := statsLines(now, tracker, last, uiMetrics, gc.line(&mem))
			surface.SetStats(lines)
			if file != nil && fileInterval > 0 && now.Sub(lastFile) >= fileInterval {
				lastFile = now
				file.WriteFileOnlyLine("Stats: "+strings.Join(lines, " | "), now)
			}
		}
	}
}
