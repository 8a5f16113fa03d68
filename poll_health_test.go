package main

import (
	"strings"
	"testing"
	"time"

	"pulseboard/stats"
)

func TestPollHealthLogsOnlyTransitions(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	snap := pollHealthSnapshot{
		Reachable:     true,
		Ticks:         4,
		LastSuccessAt: now.Add(-2 * time.Second),
		LastTickAt:    now.Add(-2 * time.Second),
	}
	h := &pollHealth{
		site:           "site-1",
		staleThreshold: 15 * time.Second,
		snapshot:       func() pollHealthSnapshot { return snap },
	}

	line, ok := h.check(now)
	if !ok || !strings.HasPrefix(line, "site-1 reachable fresh last_ok=2s") {
		t.Fatalf("expected initial line, got %q ok=%v", line, ok)
	}
	if _, ok := h.check(now.Add(time.Second)); ok {
		t.Fatalf("expected steady state to stay quiet")
	}

	snap.Reachable = false
	snap.Failures = map[stats.Outcome]uint64{stats.OutcomeTransport: 3}
	line, ok = h.check(now.Add(20 * time.Second))
	if !ok || !strings.Contains(line, "unreachable stale") || !strings.Contains(line, "failures=transport=3") {
		t.Fatalf("expected unreachable stale transition, got %q ok=%v", line, ok)
	}
}

func TestPollHealthQuietBeforeFirstTick(t *testing.T) {
	h := newPollHealth("site-1", 5*time.Second, stats.NewTracker(), &lastTick{})
	if _, ok := h.check(time.Now()); ok {
		t.Fatalf("expected no line before any tick")
	}
}

func TestAgeString(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	if got := ageString(now, time.Time{}); got != "never" {
		t.Fatalf("expected never, got %q", got)
	}
	if got := ageString(now, now.Add(time.Second)); got != "0s" {
		t.Fatalf("expected future clamp to 0s, got %q", got)
	}
	if got := ageString(now, now.Add(-90*time.Second)); got != "1m30s" {
		t.Fatalf("unexpected age %q", got)
	}
}
