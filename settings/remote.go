package settings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type flagBody struct {
	Enabled bool `json:"enabled"`
}

// RemoteFlag reads and writes the public-dashboard flag on the backend.
type RemoteFlag struct {
	baseURL   string
	path      string
	userAgent string
	http      *http.Client
}

// NewRemoteFlag builds a client for pathTemplate, where {siteId} is replaced
// with the escaped site id.
func NewRemoteFlag(baseURL, pathTemplate string, timeout time.Duration, userAgent string) *RemoteFlag {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteFlag{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		path:      pathTemplate,
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

// URL returns the flag endpoint for siteID.
func (r *RemoteFlag) URL(siteID string) string {
	return r.baseURL + strings.ReplaceAll(r.path, "{siteId}", url.PathEscape(siteID))
}

// Get fetches the current flag value.
func (r *RemoteFlag) Get(ctx context.Context, siteID string) (bool, error) {
	var body flagBody
	if err := r.do(ctx, http.MethodGet, siteID, nil, &body); err != nil {
		return false, err
	}
	return body.Enabled, nil
}

// Set stores enabled on the backend.
func (r *RemoteFlag) Set(ctx context.Context, siteID string, enabled bool) error {
	payload, err := json.Marshal(flagBody{Enabled: enabled})
	if err != nil {
		return fmt.Errorf("settings: encode flag: %w", err)
	}
	return r.do(ctx, http.MethodPut, siteID, payload, nil)
}

func (r *RemoteFlag) do(ctx context.Context, method, siteID string, payload []byte, out *flagBody) error {
	if strings.TrimSpace(siteID) == "" {
		return fmt.Errorf("settings: remote flag needs a site id")
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL(siteID), body)
	if err != nil {
		return fmt.Errorf("settings: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("settings: %s flag: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("settings: read flag response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("settings: %s flag: unexpected status %s", strings.ToLower(method), resp.Status)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("settings: decode flag: %w", err)
	}
	return nil
}

// Service ties the local store to the remote flag.
type Service struct {
	store  *Store
	remote *RemoteFlag
	siteID string
}

func NewService(store *Store, remote *RemoteFlag, siteID string) *Service {
	return &Service{store: store, remote: remote, siteID: strings.TrimSpace(siteID)}
}

func (s *Service) Store() *Store { return s.store }

// Public returns the cached flag value, falling back to the backend when the
// cache is empty.
func (s *Service) Public(ctx context.Context) (bool, error) {
	if v, err := s.store.Get(KeyPublicDashboard); err == nil {
		return strconv.ParseBool(v)
	}
	if s.remote == nil {
		return false, nil
	}
	enabled, err := s.remote.Get(ctx, s.siteID)
	if err != nil {
		return false, err
	}
	_ = s.store.Set(KeyPublicDashboard, strconv.FormatBool(enabled))
	return enabled, nil
}

// SetPublic writes the flag remotely, then caches it locally. The cache is
// only updated once the backend accepted the change.
func (s *Service) SetPublic(ctx context.Context, enabled bool) error {
	if s.remote == nil {
		return fmt.Errorf("settings: no remote flag endpoint")
	}
	if err := s.remote.Set(ctx, s.siteID, enabled); err != nil {
		return err
	}
	return s.store.Set(KeyPublicDashboard, strconv.FormatBool(enabled))
}

// TogglePublic flips the flag and returns the new value.
func (s *Service) TogglePublic(ctx context.Context) (bool, error) {
	current, err := s.Public(ctx)
	if err != nil {
		return false, err
	}
	next := !current
	if err := s.SetPublic(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

func (s *Service) LastPage(def string) string { return s.store.GetDefault(KeyLastPage, def) }

func (s *Service) SetLastPage(page string) error { return s.store.Set(KeyLastPage, page) }

func (s *Service) ExportFormat(def string) string { return s.store.GetDefault(KeyExportFormat, def) }

func (s *Service) SetExportFormat(format string) error {
	return s.store.Set(KeyExportFormat, format)
}

// Reset clears every local setting, including the cached flag.
func (s *Service) Reset() error { return s.store.Reset() }
