package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pulseboard/stats"
)

func TestFetchSnapshotDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dashboard/data/my site" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "pulseboard-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"activeUsers":42,"chartData":[{"name":"Views","data":[[1000,0],[2000,3]]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, "pulseboard-test")
	resp, err := c.FetchSnapshot(context.Background(), "my site")
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if resp.Snapshot.ActiveUsers == nil || *resp.Snapshot.ActiveUsers != 42 {
		t.Fatalf("unexpected active users %+v", resp.Snapshot.ActiveUsers)
	}
	if resp.Snapshot.Metrics != nil || resp.Snapshot.Reports != nil {
		t.Fatalf("absent fields must stay nil")
	}
	if len(resp.Snapshot.ChartData) != 1 || len(resp.Snapshot.ChartData[0].Data) != 2 {
		t.Fatalf("unexpected chart data %+v", resp.Snapshot.ChartData)
	}
	if resp.Digest == 0 || resp.Bytes == 0 {
		t.Fatalf("expected digest and size, got %+v", resp)
	}
}

func TestFetchSnapshotStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, "").FetchSnapshot(context.Background(), "x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if Classify(err) != stats.OutcomeStatus {
		t.Fatalf("expected status outcome, got %s", Classify(err))
	}
}

func TestFetchSnapshotDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"activeUsers": "lots"`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, "").FetchSnapshot(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if Classify(err) != stats.OutcomeDecode {
		t.Fatalf("expected decode outcome, got %s", Classify(err))
	}
}

func TestFetchSnapshotTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, "").FetchSnapshot(context.Background(), "x")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if Classify(err) != stats.OutcomeTransport {
		t.Fatalf("expected transport outcome, got %s", Classify(err))
	}
	if Classify(nil) != stats.OutcomeOK {
		t.Fatalf("nil error must classify as ok")
	}
}
