// Package download fetches a URL to a local file atomically, used for report
// exports.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Status indicates whether the destination changed.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusSameContent Status = "same_content"
)

// Request configures one download.
type Request struct {
	URL         string
	Destination string
	Timeout     time.Duration
	UserAgent   string
	Accept      string
}

// Result summarizes the download outcome.
type Result struct {
	Status      Status
	Path        string
	Bytes       int64
	SHA256      string
	ContentType string
}

// Purpose: Download a URL into Destination.
// Key aspects: Streams into a temp file in the destination directory while
// hashing, then renames over the destination. An existing file with the same
// SHA-256 is left untouched.
// Upstream: export.Exporter.Download.
// Downstream: HTTP client, fileSHA256, ensureParentDir.
func Download(ctx context.Context, req Request) (Result, error) {
	var result Result
	url := strings.TrimSpace(req.URL)
	dest := strings.TrimSpace(req.Destination)
	if url == "" {
		return result, errors.New("download: URL is empty")
	}
	if dest == "" {
		return result, errors.New("download: destination is empty")
	}
	result.Path = dest

	client := &http.Client{}
	reqCtx := ctx
	if req.Timeout > 0 {
		client.Timeout = req.Timeout
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return result, fmt.Errorf("download: build request: %w", err)
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("download: fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("download: fetch failed: status %s", resp.Status)
	}
	result.ContentType = resp.Header.Get("Content-Type")

	if err := ensureParentDir(dest); err != nil {
		return result, err
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return result, fmt.Errorf("download: create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body)
	if err != nil {
		tmpFile.Close()
		return result, fmt.Errorf("download: copy body: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return result, fmt.Errorf("download: finalize temp file: %w", err)
	}
	if written <= 0 {
		return result, errors.New("download: empty response body")
	}
	result.Bytes = written
	result.SHA256 = hex.EncodeToString(hasher.Sum(nil))

	if prev, err := fileSHA256(dest); err == nil && prev == result.SHA256 {
		result.Status = StatusSameContent
		return result, nil
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return result, fmt.Errorf("download: replace file: %w", err)
	}
	result.Status = StatusUpdated
	return result, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("download: create directory: %w", err)
	}
	return nil
}
