package main

import (
	"strings"
	"testing"
	"time"
)

func TestDropLogDedupeKey(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
		ok   bool
	}{
		{
			name: "status failure",
			line: "Poller: tick 12 for site-1 dropped: poller: status 503 Service Unavailable",
			want: "drop:site-1:poller: status 503 Service Unavailable",
			ok:   true,
		},
		{
			name: "stale discard",
			line: "Poller: tick 4 for site-1 discarded: tick 5 already applied",
			want: "stale:site-1",
			ok:   true,
		},
		{
			name: "startup line",
			line: "Poller: refreshing site-1 every 5s",
			ok:   false,
		},
		{
			name: "apply error",
			line: "Poller: tick 3 for site-1 applied with error: render: chart not bootstrapped",
			ok:   false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := dropLogDedupeKey(tc.line)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v (key=%q)", tc.ok, ok, got)
			}
			if tc.ok && got != tc.want {
				t.Fatalf("expected key %q, got %q", tc.want, got)
			}
		})
	}
}

func TestDropLogDeduperSuppressesWithinWindow(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	d := newDropLogDeduper(10*time.Second, 16)
	if d == nil {
		t.Fatal("expected deduper")
	}
	d.now = func() time.Time { return now }

	first := "Poller: tick 1 for site-1 dropped: connection refused"
	out, ok := d.Process(first)
	if !ok || out != first {
		t.Fatalf("expected first line to pass through, got ok=%v out=%q", ok, out)
	}

	out, ok = d.Process("Poller: tick 2 for site-1 dropped: connection refused")
	if ok || out != "" {
		t.Fatalf("expected repeat with a new tick number to be suppressed, got ok=%v out=%q", ok, out)
	}

	if _, ok := d.Process("Poller: tick 3 for site-1 dropped: poller: status 500 Internal Server Error"); !ok {
		t.Fatalf("expected a different failure to pass")
	}

	now = now.Add(11 * time.Second)
	out, ok = d.Process("Poller: tick 4 for site-1 dropped: connection refused")
	if !ok {
		t.Fatalf("expected line after window, got suppressed")
	}
	if !strings.Contains(out, "suppressed=1") {
		t.Fatalf("expected suppression summary, got %q", out)
	}
}

func TestDropLogDeduperEvictsOldestKey(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	d := newDropLogDeduper(30*time.Second, 2)
	d.now = func() time.Time { return now }

	for _, site := range []string{"a", "b", "c"} {
		if _, ok := d.Process("Poller: tick 1 for " + site + " dropped: timeout"); !ok {
			t.Fatalf("expected first line for %s to pass", site)
		}
		now = now.Add(time.Second)
	}
	if len(d.entries) != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", len(d.entries))
	}
	if _, ok := d.entries["drop:a:timeout"]; ok {
		t.Fatalf("expected oldest key to be evicted")
	}
}

func TestNilDeduperPassesThrough(t *testing.T) {
	var d *dropLogDeduper
	if out, ok := d.Process("  Poller: tick 1 for a dropped: x  "); !ok || out != "Poller: tick 1 for a dropped: x" {
		t.Fatalf("expected nil deduper to pass lines, got %q %v", out, ok)
	}
	if newDropLogDeduper(0, 4) != nil {
		t.Fatalf("expected zero window to disable dedupe")
	}
}
