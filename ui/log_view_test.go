package ui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestLogViewKeepsBoundedHistory(t *testing.T) {
	v := newLogView("System Log", 3)
	for _, line := range []string{"one", "two", "three", "four"} {
		v.Append(line)
	}
	got := v.SnapshotText()
	if strings.Contains(got, "one") {
		t.Fatalf("expected oldest line to be evicted, got %q", got)
	}
	if got != "two\nthree\nfour\n... +1 more" {
		t.Fatalf("unexpected snapshot %q", got)
	}

	v.Reset([]string{"a", "b", "c", "d", "e"})
	if got := v.SnapshotText(); got != "c\nd\ne" {
		t.Fatalf("expected reset to keep newest lines, got %q", got)
	}
}

func TestLogViewScroll(t *testing.T) {
	v := newLogView("System Log", 8)
	v.SetRect(0, 0, 40, 5)
	for i := 0; i < 8; i++ {
		v.Append("line")
	}

	if !v.HandleScroll(tcell.NewEventKey(tcell.KeyHome, 0, tcell.ModNone)) {
		t.Fatalf("expected home key to be handled")
	}
	v.mu.Lock()
	home, follow := v.offset, v.follow
	v.mu.Unlock()
	if home != 0 || follow {
		t.Fatalf("expected offset 0 without follow, got %d follow=%v", home, follow)
	}

	v.HandleScroll(tcell.NewEventKey(tcell.KeyEnd, 0, tcell.ModNone))
	v.mu.Lock()
	end := v.offset
	v.mu.Unlock()
	if end == 0 {
		t.Fatalf("expected non-zero end offset")
	}

	if !v.HandleScroll(tcell.NewEventKey(tcell.KeyRune, 'k', tcell.ModNone)) {
		t.Fatalf("expected k to scroll")
	}
	v.mu.Lock()
	up := v.offset
	v.mu.Unlock()
	if up >= end {
		t.Fatalf("expected k to move up, end=%d current=%d", end, up)
	}
	if v.HandleScroll(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Fatalf("expected unrelated rune to pass through")
	}
}

func TestLogLineMarkupTintsFailures(t *testing.T) {
	if got := logLineMarkup("Poller: tick 3 for s1 dropped: boom"); !strings.HasPrefix(got, "[red]") {
		t.Fatalf("expected red tint, got %q", got)
	}
	if got := logLineMarkup("Settings: loaded [x]"); strings.HasPrefix(got, "[red]") || !strings.Contains(got, "[x[]") {
		t.Fatalf("expected escaped plain line, got %q", got)
	}
}
