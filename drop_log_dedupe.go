package main

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

const (
	defaultDropLogDedupeWindow  = time.Minute
	defaultDropLogDedupeMaxKeys = 64
)

// dropLogDeduper rate-limits repeated poll failure lines. While the backend
// is down every tick fails the same way; only the first line per window is
// logged and the next one carries the suppressed count.
type dropLogDeduper struct {
	mu      sync.Mutex
	window  time.Duration
	maxKeys int
	now     func() time.Time
	entries map[string]dropLogDedupeEntry
}

type dropLogDedupeEntry struct {
	nextEmit   time.Time
	lastSeen   time.Time
	suppressed uint64
}

func newDropLogDeduper(window time.Duration, maxKeys int) *dropLogDeduper {
	if window <= 0 || maxKeys <= 0 {
		return nil
	}
	return &dropLogDeduper{
		window:  window,
		maxKeys: maxKeys,
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[string]dropLogDedupeEntry, maxKeys),
	}
}

// Process returns the line to emit, or false when it is suppressed. Lines
// without a dedupe key always pass.
func (d *dropLogDeduper) Process(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if d == nil {
		return line, true
	}
	key, ok := dropLogDedupeKey(line)
	if !ok {
		return line, true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, found := d.entries[key]
	if !found {
		d.evictOneIfNeededLocked()
		d.entries[key] = dropLogDedupeEntry{
			nextEmit: now.Add(d.window),
			lastSeen: now,
		}
		return line, true
	}
	entry.lastSeen = now
	if now.Before(entry.nextEmit) {
		entry.suppressed++
		d.entries[key] = entry
		return "", false
	}
	suppressed := entry.suppressed
	entry.suppressed = 0
	entry.nextEmit = now.Add(d.window)
	d.entries[key] = entry
	if suppressed > 0 {
		line = fmt.Sprintf("%s (suppressed=%d over %s)", line, suppressed, d.window)
	}
	return line, true
}

// Logf formats like log.Printf and logs only what Process lets through. It is
// handed to the poller as its log function.
func (d *dropLogDeduper) Logf(format string, args ...any) {
	if line, ok := d.Process(fmt.Sprintf(format, args...)); ok {
		log.Print(line)
	}
}

func (d *dropLogDeduper) evictOneIfNeededLocked() {
	if len(d.entries) < d.maxKeys {
		return
	}
	var oldestKey string
	var oldestSeen time.Time
	haveOldest := false
	for key, entry := range d.entries {
		if !haveOldest || entry.lastSeen.Before(oldestSeen) {
			oldestKey = key
			oldestSeen = entry.lastSeen
			haveOldest = true
		}
	}
	if haveOldest {
		delete(d.entries, oldestKey)
	}
}

// dropLogDedupeKey keys poller failure lines by site and failure text, so the
// tick number does not defeat deduplication:
//
//	Poller: tick 12 for site-1 dropped: poller: status 503 Service Unavailable
//	Poller: tick 12 for site-1 discarded: tick 13 already applied
func dropLogDedupeKey(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 6 || fields[0] != "Poller:" || fields[1] != "tick" || fields[3] != "for" {
		return "", false
	}
	site := fields[4]
	switch fields[5] {
	case "dropped:":
		reason := strings.Join(fields[6:], " ")
		if reason == "" {
			return "", false
		}
		return "drop:" + site + ":" + reason, true
	case "discarded:":
		return "stale:" + site, true
	}
	return "", false
}
