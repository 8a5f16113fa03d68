package ui

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFrameSchedulerCoalescesLatestPerID(t *testing.T) {
	f := newFrameScheduler(nil, 60, 50*time.Millisecond, nil)

	var seq []string
	f.Schedule("metric.a", func() { seq = append(seq, "a1") })
	f.Schedule("report.b", func() { seq = append(seq, "b1") })
	f.Schedule("metric.a", func() { seq = append(seq, "a2") })

	f.flush()

	if len(seq) != 2 {
		t.Fatalf("expected 2 callbacks, got %d (%v)", len(seq), seq)
	}
	if seq[0] != "a2" || seq[1] != "b1" {
		t.Fatalf("unexpected callback order/content: %v", seq)
	}

	f.flush()
	if len(seq) != 2 {
		t.Fatalf("expected no additional callbacks after empty flush, got %v", seq)
	}
}

func TestFrameSchedulerFlushesPendingOnStop(t *testing.T) {
	f := newFrameScheduler(nil, 60, 50*time.Millisecond, nil)
	var called atomic.Uint64

	f.Start()
	f.Schedule("chart", func() { called.Add(1) })
	f.Stop()

	if called.Load() != 1 {
		t.Fatalf("expected pending callback to flush on stop, got %d", called.Load())
	}
}

func TestFrameSchedulerStopIdempotent(t *testing.T) {
	f := newFrameScheduler(nil, 60, 50*time.Millisecond, nil)
	f.Start()
	f.Stop()
	f.Stop()

	unstarted := newFrameScheduler(nil, 60, 50*time.Millisecond, nil)
	unstarted.Stop()
}

func TestFrameSchedulerObservesDelay(t *testing.T) {
	var observed atomic.Uint64
	f := newFrameScheduler(nil, 60, 0, func(time.Duration) { observed.Add(1) })
	f.Schedule("x", func() {})
	f.flush()
	if observed.Load() != 1 {
		t.Fatalf("expected one observed frame, got %d", observed.Load())
	}
}
