package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"pulseboard/analytics"
	"pulseboard/stats"
)

const maxSnapshotBytes = 8 << 20

// StatusError is a non-2xx snapshot response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("poller: unexpected status %s", e.Status)
}

// DecodeError wraps a body that could not be parsed as a snapshot.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "poller: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Response is one decoded snapshot with its wire metadata.
type Response struct {
	Snapshot   analytics.Snapshot
	Digest     uint64
	Bytes      int
	StatusCode int
}

// Client fetches snapshots from the dashboard backend.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient builds a client for baseURL. A zero timeout leaves the transport
// default in place.
func NewClient(baseURL string, timeout time.Duration, userAgent string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

// SnapshotURL returns the endpoint for siteID.
func (c *Client) SnapshotURL(siteID string) string {
	return c.baseURL + "/dashboard/data/" + url.PathEscape(siteID)
}

// FetchSnapshot performs one GET for siteID. Any non-2xx status is a
// StatusError; an unparseable body is a DecodeError.
func (c *Client) FetchSnapshot(ctx context.Context, siteID string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SnapshotURL(siteID), nil)
	if err != nil {
		return Response{}, fmt.Errorf("poller: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("poller: fetch %s: %w", siteID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Response{StatusCode: resp.StatusCode}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil {
		return Response{StatusCode: resp.StatusCode}, fmt.Errorf("poller: read body: %w", err)
	}
	if len(body) > maxSnapshotBytes {
		return Response{StatusCode: resp.StatusCode}, &DecodeError{Err: fmt.Errorf("snapshot exceeds %d bytes", maxSnapshotBytes)}
	}
	snap, err := analytics.Decode(body)
	if err != nil {
		return Response{StatusCode: resp.StatusCode, Bytes: len(body)}, &DecodeError{Err: err}
	}
	return Response{
		Snapshot:   snap,
		Digest:     xxh3.Hash(body),
		Bytes:      len(body),
		StatusCode: resp.StatusCode,
	}, nil
}

// Classify maps a fetch error to its stats outcome.
func Classify(err error) stats.Outcome {
	if err == nil {
		return stats.OutcomeOK
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return stats.OutcomeStatus
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return stats.OutcomeDecode
	}
	return stats.OutcomeTransport
}
