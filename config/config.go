// Package config loads the dashboard client configuration from a directory of
// YAML files, applies defaults, and validates the merged result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRefreshIntervalMS = 5000
	minRefreshIntervalMS     = 250

	UIModeTView    = "tview"
	UIModeANSI     = "ansi"
	UIModeHeadless = "headless"

	PageOverview = "overview"
	PageReports  = "reports"
	PageSettings = "settings"
	PageLog      = "log"
)

// KnownPages lists every page the dashboard can show, in default order.
var KnownPages = []string{PageOverview, PageReports, PageSettings, PageLog}

// KnownReports mirrors analytics.ReportIDs; config stays free of the domain package.
var KnownReports = []string{
	"topPages", "referrers", "events", "devices", "browsers",
	"languages", "utmSources", "utmMediums", "utmCampaigns",
}

// Config represents the complete dashboard client configuration.
type Config struct {
	Dashboard DashboardConfig `yaml:"dashboard"`
	Poller    PollerConfig    `yaml:"poller"`
	UI        UIConfig        `yaml:"ui"`
	Logging   LoggingConfig   `yaml:"logging"`
	Settings  SettingsConfig  `yaml:"settings"`
	Export    ExportConfig    `yaml:"export"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// LoadedFrom is the directory the configuration was merged from.
	LoadedFrom string `yaml:"-"`
}

// DashboardConfig identifies the backend and the tracked site.
type DashboardConfig struct {
	BaseURL           string `yaml:"base_url"`
	SiteID            string `yaml:"site_id"`
	RefreshIntervalMS int    `yaml:"refresh_interval_ms"`
	RequestTimeoutMS  int    `yaml:"request_timeout_ms"`
	InitialData       string `yaml:"initial_data"`
	UserAgent         string `yaml:"user_agent"`
}

// RefreshInterval returns the poll cadence.
func (d DashboardConfig) RefreshInterval() time.Duration {
	return time.Duration(d.RefreshIntervalMS) * time.Millisecond
}

// RequestTimeout returns the per-request timeout; zero means the HTTP stack default.
func (d DashboardConfig) RequestTimeout() time.Duration {
	return time.Duration(d.RequestTimeoutMS) * time.Millisecond
}

// PollerConfig tunes response ordering.
type PollerConfig struct {
	// DiscardStale drops responses older than the last applied one.
	DiscardStale bool `yaml:"discard_stale"`
}

// UIConfig selects and shapes the console surface.
type UIConfig struct {
	Mode        string   `yaml:"mode"`
	TargetFPS   int      `yaml:"target_fps"`
	EnableMouse bool     `yaml:"enable_mouse"`
	Color       bool     `yaml:"color"`
	ClearScreen bool     `yaml:"clear_screen"`
	RefreshMS   int      `yaml:"refresh_ms"`
	Pages       []string `yaml:"pages"`
	Reports     []string `yaml:"reports"`
	LogLines    int      `yaml:"log_lines"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// SettingsConfig points at the local store and the remote flag endpoint.
type SettingsConfig struct {
	Path           string `yaml:"path"`
	RemoteFlagPath string `yaml:"remote_flag_path"`
}

// ExportConfig controls export link generation and downloads.
type ExportConfig struct {
	Path          string `yaml:"path"`
	Dir           string `yaml:"dir"`
	DefaultFormat string `yaml:"default_format"`
	Period        string `yaml:"period"`
}

// RecorderConfig controls the SQLite poll log.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	MaxRows int    `yaml:"max_rows"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Load merges every YAML file in dir (sorted by name), applies defaults and
// validates the result. A path that is not a directory is rejected.
func Load(dir string) (*Config, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config path %q is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	merged := map[string]any{}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", name, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", name, err)
		}
		mergeMaps(merged, doc)
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg, merged)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = dir
	return cfg, nil
}

// Default returns the configuration used when no directory is supplied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, map[string]any{})
	return cfg
}

func decode(merged map[string]any) (*Config, error) {
	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode merged config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		srcChild, srcIsMap := value.(map[string]any)
		dstChild, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstChild, srcChild)
			continue
		}
		dst[key] = value
	}
}

func hasKey(raw map[string]any, path ...string) bool {
	current := raw
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	return false
}

func applyDefaults(cfg *Config, raw map[string]any) {
	d := &cfg.Dashboard
	d.BaseURL = strings.TrimRight(strings.TrimSpace(d.BaseURL), "/")
	if d.BaseURL == "" {
		d.BaseURL = "http://localhost:8080"
	}
	d.SiteID = strings.TrimSpace(d.SiteID)
	if !hasKey(raw, "dashboard", "refresh_interval_ms") {
		d.RefreshIntervalMS = DefaultRefreshIntervalMS
	}
	if strings.TrimSpace(d.UserAgent) == "" {
		d.UserAgent = "pulseboard/1.0"
	}

	ui := &cfg.UI
	ui.Mode = strings.ToLower(strings.TrimSpace(ui.Mode))
	if ui.Mode == "" {
		ui.Mode = UIModeTView
	}
	if ui.TargetFPS <= 0 {
		ui.TargetFPS = 30
	}
	if ui.RefreshMS <= 0 {
		ui.RefreshMS = 500
	}
	if len(ui.Pages) == 0 {
		ui.Pages = append([]string(nil), KnownPages...)
	}
	if len(ui.Reports) == 0 {
		ui.Reports = append([]string(nil), KnownReports...)
	}
	if ui.LogLines <= 0 {
		ui.LogLines = 500
	}

	if strings.TrimSpace(cfg.Logging.Dir) == "" {
		cfg.Logging.Dir = "data/logs"
	}
	if cfg.Logging.RetentionDays <= 0 {
		cfg.Logging.RetentionDays = 7
	}

	if strings.TrimSpace(cfg.Settings.Path) == "" {
		cfg.Settings.Path = "data/settings"
	}
	if strings.TrimSpace(cfg.Settings.RemoteFlagPath) == "" {
		cfg.Settings.RemoteFlagPath = "/dashboard/settings/{siteId}/public"
	}

	e := &cfg.Export
	if strings.TrimSpace(e.Path) == "" {
		e.Path = "/dashboard/export/{siteId}"
	}
	if strings.TrimSpace(e.Dir) == "" {
		e.Dir = "data/exports"
	}
	e.DefaultFormat = strings.ToLower(strings.TrimSpace(e.DefaultFormat))
	if e.DefaultFormat == "" {
		e.DefaultFormat = "csv"
	}
	if strings.TrimSpace(e.Period) == "" {
		e.Period = "7d"
	}

	if strings.TrimSpace(cfg.Recorder.Path) == "" {
		cfg.Recorder.Path = "data/polls.db"
	}
	if cfg.Recorder.MaxRows <= 0 {
		cfg.Recorder.MaxRows = 10000
	}
}

// Validate checks the merged configuration after defaults.
func (c *Config) Validate() error {
	base, err := url.Parse(c.Dashboard.BaseURL)
	if err != nil {
		return fmt.Errorf("dashboard.base_url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return fmt.Errorf("dashboard.base_url must be http or https, got %q", c.Dashboard.BaseURL)
	}
	if base.Host == "" {
		return fmt.Errorf("dashboard.base_url is missing a host: %q", c.Dashboard.BaseURL)
	}
	if c.Dashboard.RefreshIntervalMS < minRefreshIntervalMS {
		return fmt.Errorf("dashboard.refresh_interval_ms must be >= %d, got %d", minRefreshIntervalMS, c.Dashboard.RefreshIntervalMS)
	}
	if c.Dashboard.RequestTimeoutMS < 0 {
		return fmt.Errorf("dashboard.request_timeout_ms must be >= 0, got %d", c.Dashboard.RequestTimeoutMS)
	}
	switch c.UI.Mode {
	case UIModeTView, UIModeANSI, UIModeHeadless:
	default:
		return fmt.Errorf("ui.mode %q is invalid%s", c.UI.Mode, suggest(c.UI.Mode, []string{UIModeTView, UIModeANSI, UIModeHeadless}))
	}
	if err := validateNames("ui.pages", c.UI.Pages, KnownPages); err != nil {
		return err
	}
	if err := validateNames("ui.reports", c.UI.Reports, KnownReports); err != nil {
		return err
	}
	switch c.Export.DefaultFormat {
	case "csv", "json":
	default:
		return fmt.Errorf("export.default_format %q is invalid (want csv or json)", c.Export.DefaultFormat)
	}
	if !strings.HasPrefix(c.Export.Path, "/") {
		return fmt.Errorf("export.path must start with '/', got %q", c.Export.Path)
	}
	if !strings.HasPrefix(c.Settings.RemoteFlagPath, "/") {
		return fmt.Errorf("settings.remote_flag_path must start with '/', got %q", c.Settings.RemoteFlagPath)
	}
	return nil
}

func validateNames(field string, names, known []string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return fmt.Errorf("%s: duplicate entry %q", field, name)
		}
		seen[name] = true
		if !contains(known, name) {
			return fmt.Errorf("%s: unknown entry %q%s", field, name, suggest(name, known))
		}
	}
	return nil
}

// suggest returns a " (did you mean ...?)" hint for near misses.
func suggest(name string, known []string) string {
	best := ""
	bestDist := 4
	lower := strings.ToLower(name)
	for _, candidate := range known {
		dist := levenshtein.ComputeDistance(lower, strings.ToLower(candidate))
		if dist < bestDist {
			best = candidate
			bestDist = dist
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
