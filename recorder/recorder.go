// Package recorder keeps a bounded SQLite log of poll tick outcomes for
// offline inspection without slowing the refresh loop.
package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pulseboard/poller"

	_ "modernc.org/sqlite"
)

// Row is one recorded tick.
type Row struct {
	ID         int64
	Seq        uint64
	SiteID     string
	IssuedAt   time.Time
	ResolvedAt time.Time
	Latency    time.Duration
	Outcome    string
	StatusCode int
	Bytes      int
	Digest     string
	Repeat     bool
	Error      string
}

// Recorder persists at most maxRows ticks, dropping the oldest.
type Recorder struct {
	db      *sql.DB
	maxRows int
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// Open opens (or creates) the SQLite database at path and ensures schema
// exists. A corrupt file is quarantined and replaced with a fresh one.
func Open(path string, maxRows int) (*Recorder, error) {
	if maxRows <= 0 {
		return nil, errors.New("recorder: max rows must be > 0")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("recorder: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("recorder: ensure dir: %w", err)
	}
	if _, err := preflight(path, 2*time.Second); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Recorder{db: db, maxRows: maxRows}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS poll_ticks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    seq INTEGER,
    site_id TEXT,
    issued_at INTEGER,
    resolved_at INTEGER,
    latency_ms INTEGER,
    outcome TEXT,
    status_code INTEGER,
    bytes INTEGER,
    digest TEXT,
    is_repeat INTEGER,
    error TEXT
);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("recorder: schema: %w", err)
	}
	return nil
}

// ObserveTick records res asynchronously.
func (r *Recorder) ObserveTick(res poller.TickResult) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.pending.Add(1)
	r.mu.Unlock()
	go r.insert(res)
}

func (r *Recorder) insert(res poller.TickResult) {
	defer r.pending.Done()
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	digest := ""
	if res.Digest != 0 {
		digest = fmt.Sprintf("%016x", res.Digest)
	}
	_, err := r.db.Exec(`
INSERT INTO poll_ticks (
    seq, site_id, issued_at, resolved_at, latency_ms, outcome,
    status_code, bytes, digest, is_repeat, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(res.Seq),
		res.SiteID,
		res.IssuedAt.UTC().UnixMilli(),
		res.ResolvedAt.UTC().UnixMilli(),
		res.Latency.Milliseconds(),
		string(res.Outcome),
		res.StatusCode,
		res.Bytes,
		digest,
		boolToInt(res.Repeat),
		errText,
	)
	if err != nil {
		log.Printf("Recorder: failed to insert tick %d: %v", res.Seq, err)
		return
	}
	if _, err := r.db.Exec(`
DELETE FROM poll_ticks WHERE id <= (
    SELECT id FROM poll_ticks ORDER BY id DESC LIMIT 1 OFFSET ?
)`, r.maxRows); err != nil {
		log.Printf("Recorder: failed to prune: %v", err)
	}
}

// Flush waits for queued inserts.
func (r *Recorder) Flush() {
	if r == nil {
		return
	}
	r.pending.Wait()
}

// Recent returns up to limit rows, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, seq, site_id, issued_at, resolved_at, latency_ms, outcome,
       status_code, bytes, digest, is_repeat, error
FROM poll_ticks ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recorder: query: %w", err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var (
			row               Row
			seq               int64
			issued, resolved  int64
			latencyMS, repeat int64
		)
		if err := rows.Scan(&row.ID, &seq, &row.SiteID, &issued, &resolved, &latencyMS,
			&row.Outcome, &row.StatusCode, &row.Bytes, &row.Digest, &repeat, &row.Error); err != nil {
			return nil, fmt.Errorf("recorder: scan: %w", err)
		}
		row.Seq = uint64(seq)
		row.IssuedAt = time.UnixMilli(issued).UTC()
		row.ResolvedAt = time.UnixMilli(resolved).UTC()
		row.Latency = time.Duration(latencyMS) * time.Millisecond
		row.Repeat = repeat != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

// Count returns the number of stored rows.
func (r *Recorder) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM poll_ticks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("recorder: count: %w", err)
	}
	return n, nil
}

// Clear deletes every stored row after pending inserts land.
func (r *Recorder) Clear(ctx context.Context) error {
	r.Flush()
	if _, err := r.db.ExecContext(ctx, `DELETE FROM poll_ticks`); err != nil {
		return fmt.Errorf("recorder: clear: %w", err)
	}
	return nil
}

// Close waits for pending inserts and closes the database.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	r.pending.Wait()
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
