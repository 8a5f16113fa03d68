package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogFileNameRoundTrip(t *testing.T) {
	when := time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)
	name := logFileNameForDate(when)
	if name != "pulseboard-2026-10-15.log" {
		t.Fatalf("unexpected log filename %q", name)
	}
	parsed, ok := parseLogFileDate(name)
	if !ok || !parsed.Equal(time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected parse %v %v", parsed, ok)
	}
	for _, bad := range []string{"notes.txt", "other-2026-10-15.log", "pulseboard-15-Oct-2026.log"} {
		if _, ok := parseLogFileDate(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"pulseboard-2026-10-13.log",
		"pulseboard-2026-10-14.log",
		"pulseboard-2026-10-15.log",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "pulseboard-2026-10-13.log")); !os.IsNotExist(err) {
		t.Fatalf("expected oldest log removed, stat err=%v", err)
	}
	for _, name := range []string{"pulseboard-2026-10-14.log", "pulseboard-2026-10-15.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestDailyFileSinkRotatesByDay(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 7)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	day1 := time.Date(2026, time.October, 15, 23, 59, 0, 0, time.UTC)
	sink.WriteLine("first", day1)
	sink.WriteLine("second", day1.Add(2*time.Minute))

	for name, want := range map[string]string{
		"pulseboard-2026-10-15.log": "first",
		"pulseboard-2026-10-16.log": "second",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %q in %s, got %q", want, name, data)
		}
	}
}

func TestLogFanoutSplitsLinesAcrossSinks(t *testing.T) {
	var console bytes.Buffer
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 1)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	fanout := newLogFanout(&ioLineSink{w: &console}, sink)
	defer fanout.Close()
	logger := log.New(fanout, "", 0)

	logger.Print("Poller: refreshing s1 every 5s")
	fanout.WriteFileOnlyLine("Stats: file only", time.Now())
	if _, err := fanout.Write([]byte("partial")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := console.String(); got != "Poller: refreshing s1 every 5s\n" {
		t.Fatalf("unexpected console output %q", got)
	}
	data, err := os.ReadFile(filepath.Join(dir, logFileNameForDate(time.Now())))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "Stats: file only") || strings.Contains(string(data), "partial") {
		t.Fatalf("unexpected file contents %q", data)
	}

	fanout.SetConsoleSink(nil, false)
	logger.Print("silenced")
	if strings.Contains(console.String(), "silenced") {
		t.Fatalf("expected console sink to be detached")
	}
}
