package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// preflight runs a bounded quick_check on an existing poll log. A file that
// fails the check is renamed aside with its sidecars so Open starts fresh.
// It returns the quarantine path, empty when the file was healthy or absent.
func preflight(path string, timeout time.Duration) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	checkErr := quickCheck(ctx, path)
	if checkErr == nil {
		return "", nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("recorder: preflight timed out after %s", timeout)
	}
	moved, err := quarantine(path, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("recorder: quarantine failed: %w (quick_check=%v)", err, checkErr)
	}
	log.Printf("Recorder: poll log failed quick_check (%v); moved to %s", checkErr, moved)
	return moved, nil
}

func quickCheck(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

func quarantine(path string, now time.Time) (string, error) {
	suffix := ".bad-" + now.Format("20060102T150405Z")
	for _, p := range append([]string{path}, sidecarPaths(path)...) {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Rename(p, p+suffix); err != nil {
			return "", err
		}
	}
	return path + suffix, nil
}

func sidecarPaths(path string) []string {
	out := make([]string, len(sidecarSuffixes))
	for i, s := range sidecarSuffixes {
		out[i] = path + s
	}
	return out
}
