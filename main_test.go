package main

import (
	"os"
	"path/filepath"
	"testing"

	"pulseboard/config"
)

func TestResolveSiteIDPrecedence(t *testing.T) {
	cfg := config.Default()
	cfg.Dashboard.SiteID = "from-config"

	t.Setenv(envSiteID, "")
	if got := resolveSiteID(cfg, ""); got != "from-config" {
		t.Fatalf("expected config site, got %q", got)
	}
	t.Setenv(envSiteID, " from-env ")
	if got := resolveSiteID(cfg, ""); got != "from-env" {
		t.Fatalf("expected env site, got %q", got)
	}
	if got := resolveSiteID(cfg, "from-flag"); got != "from-flag" {
		t.Fatalf("expected flag site, got %q", got)
	}
}

func TestLoadDashboardConfigFromFlagAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "dashboard:\n  site_id: site-9\n  base_url: http://example.test/\n"
	if err := os.WriteFile(filepath.Join(dir, "dashboard.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, source, err := loadDashboardConfig(dir)
	if err != nil {
		t.Fatalf("loadDashboardConfig: %v", err)
	}
	if cfg.Dashboard.SiteID != "site-9" || source != cfg.LoadedFrom {
		t.Fatalf("unexpected config %+v from %q", cfg.Dashboard, source)
	}

	if _, _, err := loadDashboardConfig(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected an explicit missing path to fail")
	}

	t.Setenv(envConfigPath, filepath.Join(dir, "missing"))
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, source, err = loadDashboardConfig("")
	if err != nil || source != "defaults" || cfg.Dashboard.SiteID != "" {
		t.Fatalf("expected defaults when nothing exists, got %q err=%v", source, err)
	}
}

func TestLoadInitialSeries(t *testing.T) {
	if series, err := loadInitialSeries(""); series != nil || err != nil {
		t.Fatalf("expected nil dataset for blank path")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "initial.json")
	payload := `{"chartData":[{"name":"Views","data":[[1700000000000,4]]}]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	series, err := loadInitialSeries(path)
	if err != nil {
		t.Fatalf("loadInitialSeries: %v", err)
	}
	if len(series) != 1 || series[0].Name != "Views" || len(series[0].Data) != 1 {
		t.Fatalf("unexpected series %+v", series)
	}
	if _, err := loadInitialSeries(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestSelectSurfaceFallsBackHeadless(t *testing.T) {
	uiCfg := config.Default().UI
	uiCfg.Mode = config.UIModeTView
	surface, dash := selectSurface(uiCfg, false)
	defer surface.Stop()
	if dash != nil {
		t.Fatalf("expected no dashboard without a TTY")
	}
	console, ok := surface.(*ansiConsole)
	if !ok || console.render {
		t.Fatalf("expected headless console, got %T", surface)
	}
}
