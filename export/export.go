// Package export builds report export links and downloads them.
package export

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"pulseboard/download"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatCSV, FormatJSON}

// ParseFormat normalizes s into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("export: unknown format %q (want csv or json)", s)
}

func (f Format) contentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// BuildURL returns the export link for siteID. pathTemplate may contain a
// {siteId} placeholder; format and period are sent as query parameters.
func BuildURL(base, pathTemplate, siteID string, format Format, period string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", fmt.Errorf("export: base url is empty")
	}
	if strings.TrimSpace(siteID) == "" {
		return "", fmt.Errorf("export: site id is empty")
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return "", err
	}
	path := strings.ReplaceAll(pathTemplate, "{siteId}", url.PathEscape(siteID))
	u, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("export: build url: %w", err)
	}
	q := u.Query()
	q.Set("format", string(format))
	if period = strings.TrimSpace(period); period != "" {
		q.Set("period", period)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Config holds exporter settings.
type Config struct {
	BaseURL   string
	Path      string
	Dir       string
	Period    string
	Timeout   time.Duration
	UserAgent string
}

// Exporter downloads exports into a local directory.
type Exporter struct {
	cfg    Config
	siteID string
	now    func() time.Time
}

func New(cfg Config, siteID string) *Exporter {
	return &Exporter{cfg: cfg, siteID: strings.TrimSpace(siteID), now: time.Now}
}

// URL returns the export link for format.
func (e *Exporter) URL(format Format) (string, error) {
	return BuildURL(e.cfg.BaseURL, e.cfg.Path, e.siteID, format, e.cfg.Period)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Destination returns the file path an export at t is written to.
func (e *Exporter) Destination(format Format, t time.Time) string {
	site := unsafeName.ReplaceAllString(e.siteID, "_")
	name := fmt.Sprintf("%s-%s.%s", site, t.UTC().Format("20060102-150405"), format)
	return filepath.Join(e.cfg.Dir, name)
}

// Download fetches the export for format into the export directory.
func (e *Exporter) Download(ctx context.Context, format Format) (download.Result, error) {
	link, err := e.URL(format)
	if err != nil {
		return download.Result{}, err
	}
	res, err := download.Download(ctx, download.Request{
		URL:         link,
		Destination: e.Destination(format, e.now()),
		Timeout:     e.cfg.Timeout,
		UserAgent:   e.cfg.UserAgent,
		Accept:      format.contentType(),
	})
	if err != nil {
		return res, fmt.Errorf("export: %w", err)
	}
	log.Printf("Export: wrote %s (%s)", res.Path, humanize.Bytes(uint64(res.Bytes)))
	return res, nil
}
