package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pulseboard/poller"
	"pulseboard/stats"
)

func tick(seq uint64, outcome stats.Outcome) poller.TickResult {
	issued := time.Unix(1700000000, 0).Add(time.Duration(seq) * 5 * time.Second)
	return poller.TickResult{
		Seq:        seq,
		SiteID:     "site-1",
		IssuedAt:   issued,
		ResolvedAt: issued.Add(120 * time.Millisecond),
		Latency:    120 * time.Millisecond,
		Outcome:    outcome,
		StatusCode: 200,
		Bytes:      512,
		Digest:     0xabc,
	}
}

func TestRecorderBoundsRows(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "polls.db"), 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	for seq := uint64(1); seq <= 5; seq++ {
		r.ObserveTick(tick(seq, stats.OutcomeOK))
		r.Flush()
	}
	ctx := context.Background()
	n, err := r.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows after pruning, got %d", n)
	}
	rows, err := r.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 3 || rows[0].Seq != 5 || rows[2].Seq != 3 {
		t.Fatalf("expected newest-first seq 5..3, got %+v", rows)
	}
	if rows[0].Latency != 120*time.Millisecond || rows[0].Digest != "0000000000000abc" {
		t.Fatalf("unexpected row fields %+v", rows[0])
	}
}

func TestRecorderStoresErrorsAndClears(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "polls.db"), 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	failed := tick(1, stats.OutcomeTransport)
	failed.Err = errors.New("connection refused")
	failed.StatusCode = 0
	r.ObserveTick(failed)
	r.Flush()

	ctx := context.Background()
	rows, err := r.Recent(ctx, 1)
	if err != nil || len(rows) != 1 {
		t.Fatalf("Recent: %v %v", rows, err)
	}
	if rows[0].Outcome != "transport" || rows[0].Error != "connection refused" {
		t.Fatalf("unexpected row %+v", rows[0])
	}
	if err := r.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := r.Count(ctx); n != 0 {
		t.Fatalf("expected empty log, got %d", n)
	}
}

func TestOpenQuarantinesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polls.db")
	if err := os.WriteFile(path, []byte("not a sqlite database"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := Open(path, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	matches, _ := filepath.Glob(path + ".bad-*")
	if len(matches) == 0 {
		t.Fatalf("expected corrupt file to be quarantined")
	}
	if n, err := r.Count(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected fresh empty log, got %d %v", n, err)
	}
}

func TestObserveAfterCloseIsIgnored(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "polls.db"), 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	r.ObserveTick(tick(1, stats.OutcomeOK))
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
