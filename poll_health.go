package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"pulseboard/stats"
)

const (
	pollHealthInterval  = 30 * time.Second
	pollHealthLogPrefix = "Poll Health: "
)

type pollHealthSnapshot struct {
	Reachable     bool
	LastTickAt    time.Time
	LastSuccessAt time.Time
	Ticks         uint64
	Failures      map[stats.Outcome]uint64
}

type pollHealthState struct {
	reachable   bool
	stale       bool
	initialized bool
}

// pollHealth logs reachability and staleness transitions of the polled site.
// Steady state produces no output.
type pollHealth struct {
	site           string
	staleThreshold time.Duration
	snapshot       func() pollHealthSnapshot
	state          pollHealthState
}

// newPollHealth treats data older than three refresh intervals as stale.
func newPollHealth(site string, refresh time.Duration, tracker *stats.Tracker, last *lastTick) *pollHealth {
	return &pollHealth{
		site:           site,
		staleThreshold: 3 * refresh,
		snapshot: func() pollHealthSnapshot {
			snap := pollHealthSnapshot{
				Reachable:     true,
				LastSuccessAt: tracker.LastSuccess(),
				Ticks:         tracker.Ticks(),
				Failures:      make(map[stats.Outcome]uint64, len(stats.Outcomes)),
			}
			for _, outcome := range stats.Outcomes {
				if outcome != stats.OutcomeOK {
					snap.Failures[outcome] = tracker.Count(outcome)
				}
			}
			if res, ok := last.Load(); ok {
				snap.LastTickAt = res.ResolvedAt
				snap.Reachable = res.Outcome == stats.OutcomeOK || res.Outcome == stats.OutcomeStale
			}
			return snap
		},
	}
}

// check returns a log line when the health state changed since the last call.
func (h *pollHealth) check(now time.Time) (string, bool) {
	snap := h.snapshot()
	if snap.Ticks == 0 {
		return "", false
	}
	stale := pollIsStale(snap, now, h.staleThreshold)
	if h.state.initialized && h.state.reachable == snap.Reachable && h.state.stale == stale {
		return "", false
	}
	h.state = pollHealthState{reachable: snap.Reachable, stale: stale, initialized: true}
	return formatPollHealthLine(h.site, snap, stale, now), true
}

// Purpose: Periodically log poll health transitions with low noise.
// Key aspects: Reports only on reachable/stale state changes.
// Upstream: main startup after the poller starts.
// Downstream: log.Printf.
func startPollHealthMonitor(ctx context.Context, h *pollHealth) {
	if h == nil || h.snapshot == nil {
		return
	}
	ticker := time.NewTicker(pollHealthInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if line, ok := h.check(time.Now().UTC()); ok {
					log.Printf("%s%s", pollHealthLogPrefix, line)
				}
			}
		}
	}()
}

func pollIsStale(snap pollHealthSnapshot, now time.Time, threshold time.Duration) bool {
	if snap.LastSuccessAt.IsZero() {
		return true
	}
	return threshold > 0 && now.Sub(snap.LastSuccessAt) > threshold
}

func formatPollHealthLine(site string, snap pollHealthSnapshot, stale bool, now time.Time) string {
	status := "reachable"
	if !snap.Reachable {
		status = "unreachable"
	}
	state := "fresh"
	if stale {
		state = "stale"
	}
	var b strings.Builder
	b.WriteString(site)
	b.WriteString(" ")
	b.WriteString(status)
	b.WriteString(" ")
	b.WriteString(state)
	b.WriteString(" last_ok=")
	b.WriteString(ageString(now, snap.LastSuccessAt))
	if !snap.LastTickAt.IsZero() {
		b.WriteString(" last_tick=")
		b.WriteString(ageString(now, snap.LastTickAt))
	}
	var failParts []string
	for _, outcome := range stats.Outcomes {
		if n := snap.Failures[outcome]; n > 0 {
			failParts = append(failParts, fmt.Sprintf("%s=%d", outcome, n))
		}
	}
	if len(failParts) > 0 {
		b.WriteString(" failures=")
		b.WriteString(strings.Join(failParts, ","))
	}
	return b.String()
}

func ageString(now time.Time, at time.Time) string {
	if at.IsZero() {
		return "never"
	}
	age := now.Sub(at)
	if age < 0 {
		age = 0
	}
	if age < time.Second {
		return "0s"
	}
	return age.Truncate(time.Second).String()
}
