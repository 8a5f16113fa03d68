package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, text string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "app.yaml", "dashboard:\n  site_id: \" site-1 \"\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Dashboard.SiteID != "site-1" {
		t.Fatalf("expected trimmed site id, got %q", cfg.Dashboard.SiteID)
	}
	if cfg.Dashboard.RefreshInterval() != 5*time.Second {
		t.Fatalf("expected default refresh 5s, got %v", cfg.Dashboard.RefreshInterval())
	}
	if cfg.Dashboard.RequestTimeout() != 0 {
		t.Fatalf("expected no request timeout by default, got %v", cfg.Dashboard.RequestTimeout())
	}
	if cfg.UI.Mode != UIModeTView || cfg.UI.TargetFPS != 30 {
		t.Fatalf("unexpected ui defaults: %+v", cfg.UI)
	}
	if len(cfg.UI.Pages) != len(KnownPages) || len(cfg.UI.Reports) != len(KnownReports) {
		t.Fatalf("expected all pages and reports by default: %+v", cfg.UI)
	}
	if cfg.Export.DefaultFormat != "csv" || cfg.Export.Path != "/dashboard/export/{siteId}" {
		t.Fatalf("unexpected export defaults: %+v", cfg.Export)
	}
	if cfg.Poller.DiscardStale {
		t.Fatalf("stale guard must be off by default")
	}
	if cfg.Recorder.MaxRows != 10000 {
		t.Fatalf("unexpected recorder default: %d", cfg.Recorder.MaxRows)
	}
}

func TestLoadDirectoryMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "app.yaml", "dashboard:\n  base_url: \"https://stats.example.com/\"\n  site_id: alpha\n")
	writeConfig(t, dir, "ui.yml", "dashboard:\n  refresh_interval_ms: 2000\nui:\n  mode: ansi\n")
	writeConfig(t, dir, "notes.txt", "not: [yaml")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := filepath.Clean(cfg.LoadedFrom); got != filepath.Clean(dir) {
		t.Fatalf("expected LoadedFrom=%s, got %s", dir, got)
	}
	if cfg.Dashboard.BaseURL != "https://stats.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Dashboard.BaseURL)
	}
	if cfg.Dashboard.SiteID != "alpha" {
		t.Fatalf("expected site id merged from app.yaml, got %q", cfg.Dashboard.SiteID)
	}
	if cfg.Dashboard.RefreshIntervalMS != 2000 {
		t.Fatalf("expected refresh merged from ui.yml, got %d", cfg.Dashboard.RefreshIntervalMS)
	}
	if cfg.UI.Mode != UIModeANSI {
		t.Fatalf("expected ansi mode, got %q", cfg.UI.Mode)
	}
}

func TestLoadRejectsSingleFilePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	writeConfig(t, dir, "app.yaml", "dashboard:\n  site_id: x\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected Load() to reject non-directory config path")
	}
}

func TestLoadRejectsZeroRefreshInterval(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "app.yaml", "dashboard:\n  refresh_interval_ms: 0\n")
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected explicit zero refresh interval to be rejected")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "app.yaml", "dashboard:\n  site: x\n")
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestLoadInvalidPageSuggestsNearest(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "ui.yaml", "ui:\n  pages: [\"overview\", \"reprots\"]\n")
	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected invalid page error")
	}
	if !strings.Contains(err.Error(), `did you mean "reports"`) {
		t.Fatalf("expected suggestion in error, got %v", err)
	}
}

func TestLoadDuplicateReports(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "ui.yaml", "ui:\n  reports: [\"topPages\", \"topPages\"]\n")
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected duplicate report error")
	}
}

func TestLoadRejectsBadBaseURL(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "app.yaml", "dashboard:\n  base_url: \"ftp://example.com\"\n")
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected non-http base url to be rejected")
	}
}

func TestLoadEmptyDirectoryUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Dashboard.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected default base url %q", cfg.Dashboard.BaseURL)
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}
