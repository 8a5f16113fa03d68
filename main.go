// Program pulseboard is a terminal client for a web analytics backend: it
// polls one site's dashboard snapshot on a fixed cadence and renders active
// users, metric cards, the traffic chart and the ranked reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"pulseboard/analytics"
	"pulseboard/chart"
	"pulseboard/clock"
	"pulseboard/config"
	"pulseboard/export"
	"pulseboard/poller"
	"pulseboard/recorder"
	"pulseboard/render"
	"pulseboard/settings"
	"pulseboard/stats"
	"pulseboard/ui"
)

const (
	defaultConfigPath = "data/config"
	envConfigPath     = "PULSE_CONFIG_PATH"
	envSiteID         = "PULSE_SITE_ID"
	metricsNamespace  = "pulseboard"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// Purpose: Report whether stdout is a TTY for UI gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: main UI selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func stdoutWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// Purpose: Load configuration from flag/env/default locations.
// Key aspects: An explicit flag path must load; env and default paths are
// tried in order and a missing directory falls through to the next.
// Upstream: main startup.
// Downstream: config.Load and os.IsNotExist.
func loadDashboardConfig(flagPath string) (*config.Config, string, error) {
	if path := strings.TrimSpace(flagPath); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, path, err
		}
		return cfg, cfg.LoadedFrom, nil
	}
	candidates := make([]string, 0, 2)
	if envPath := strings.TrimSpace(os.Getenv(envConfigPath)); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates, defaultConfigPath)

	var lastErr error
	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				lastErr = err
				continue
			}
			return nil, path, err
		}
		return cfg, cfg.LoadedFrom, nil
	}
	log.Printf("No configuration found (tried %s: %v); using defaults", strings.Join(candidates, ", "), lastErr)
	return config.Default(), "defaults", nil
}

// resolveSiteID applies the -site flag, then PULSE_SITE_ID, then config.
func resolveSiteID(cfg *config.Config, flagSite string) string {
	if site := strings.TrimSpace(flagSite); site != "" {
		return site
	}
	if site := strings.TrimSpace(os.Getenv(envSiteID)); site != "" {
		return site
	}
	return strings.TrimSpace(cfg.Dashboard.SiteID)
}

// Purpose: Pick the console surface for the configured mode.
// Key aspects: tview and ansi need an interactive stdout; anything else runs
// headless on an in-memory document.
// Upstream: main.
// Downstream: ui.NewDashboard, newANSIConsole.
func selectSurface(uiCfg config.UIConfig, tty bool) (ui.Surface, *ui.Dashboard) {
	switch uiCfg.Mode {
	case config.UIModeTView:
		if tty {
			dash := ui.NewDashboard(uiCfg, clock.Real{})
			return dash, dash
		}
		log.Printf("UI: tview requires an interactive console; running headless")
	case config.UIModeANSI:
		if tty {
			return newANSIConsole(uiCfg, os.Stdout, stdoutWidth(), true, clock.Real{}), nil
		}
		log.Printf("UI: ansi renderer requires an interactive console; running headless")
	default:
		log.Printf("UI disabled (mode=%s)", uiCfg.Mode)
	}
	return newANSIConsole(uiCfg, nil, 0, false, clock.Real{}), nil
}

// Purpose: Program entrypoint; wires configuration, surface, poller and
// supporting stores.
// Key aspects: Every optional component degrades to a log line when it
// cannot start; only an invalid config is fatal.
// Upstream: OS process start.
// Downstream: Startup helpers and goroutines.
func main() {
	configFlag := flag.String("config", "", "configuration directory (overrides "+envConfigPath+")")
	siteFlag := flag.String("site", "", "site id to poll (overrides "+envSiteID+")")
	flag.Parse()

	cfg, configSource, err := loadDashboardConfig(*configFlag)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stderr)
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Logging: file sink disabled: %v", logErr)
	}
	log.Printf("Loaded configuration from %s", configSource)

	surface, dash := selectSurface(cfg.UI, isStdoutTTY())
	if dash != nil {
		dash.Run()
	}
	surface.WaitReady()
	defer surface.Stop()
	if w := surface.SystemWriter(); w != nil {
		fanout.SetConsoleSink(w, true)
		defer fanout.SetConsoleSink(os.Stderr, true)
	}
	surface.SetStats([]string{"Initializing..."})

	log.Printf("pulseboard v%s starting...", Version)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	siteID := resolveSiteID(cfg, *siteFlag)
	tracker := stats.NewTracker()
	ticks := newTickObservers(&lastTick{})

	var polls *recorder.Recorder
	if cfg.Recorder.Enabled {
		rec, err := recorder.Open(cfg.Recorder.Path, cfg.Recorder.MaxRows)
		if err != nil {
			log.Printf("Recorder: disabled: %v", err)
		} else {
			polls = rec
			ticks.Add(rec)
			log.Printf("Recorder: logging polls to %s (max %d rows)", cfg.Recorder.Path, cfg.Recorder.MaxRows)
		}
	}

	var store *settings.Store
	if s, err := settings.Open(cfg.Settings.Path); err != nil {
		log.Printf("Settings: local store unavailable: %v", err)
	} else {
		store = s
	}
	if store != nil && dash != nil {
		remote := settings.NewRemoteFlag(cfg.Dashboard.BaseURL, cfg.Settings.RemoteFlagPath, cfg.Dashboard.RequestTimeout(), cfg.Dashboard.UserAgent)
		svc := settings.NewService(store, remote, siteID)
		exporter := export.New(export.Config{
			BaseURL:   cfg.Dashboard.BaseURL,
			Path:      cfg.Export.Path,
			Dir:       cfg.Export.Dir,
			Period:    cfg.Export.Period,
			Timeout:   cfg.Dashboard.RequestTimeout(),
			UserAgent: cfg.Dashboard.UserAgent,
		}, siteID)
		actions := &settingsActions{
			dialogs:   dash,
			settings:  svc,
			exporter:  exporter,
			clipboard: os.Stdout,
			defFormat: cfg.Export.DefaultFormat,
			refresh:   dash.SetSettings,
		}
		if polls != nil {
			actions.polls = polls
		}
		dash.SetSettings(actions.Lines(ctx))
		dash.SetActions(actions.Actions())
		dash.ShowPage(svc.LastPage(config.PageOverview))
		dash.OnPageChange(func(page string) {
			if err := svc.SetLastPage(page); err != nil {
				log.Printf("Settings: save last page failed: %v", err)
			}
		})
	}

	handle := chart.NewHandle(surface.ChartFactory(), chart.DefaultOptions())
	renderer := render.NewRenderer(surface, handle, render.WithReports(cfg.UI.Reports), render.WithLogf(log.Printf))
	initial, err := loadInitialSeries(cfg.Dashboard.InitialData)
	if err != nil {
		log.Printf("Renderer: initial dataset ignored: %v", err)
	}
	if err := renderer.BootstrapChart(render.SlotChart, initial); err != nil {
		log.Printf("Renderer: chart bootstrap failed: %v", err)
	}

	client := poller.NewClient(cfg.Dashboard.BaseURL, cfg.Dashboard.RequestTimeout(), cfg.Dashboard.UserAgent)
	p := poller.New(poller.Config{
		Interval:     cfg.Dashboard.RefreshInterval(),
		DiscardStale: cfg.Poller.DiscardStale,
	}, client, renderer,
		poller.WithProgress(surface),
		poller.WithTracker(tracker),
		poller.WithObserver(ticks),
		poller.WithLogf(newDropLogDeduper(defaultDropLogDedupeWindow, defaultDropLogDedupeMaxKeys).Logf),
	)
	switch err := p.Start(ctx, siteID); {
	case errors.Is(err, poller.ErrNoSite):
		log.Printf("Poller: no site id configured; refresh disabled")
	case err != nil:
		log.Printf("Poller: not started: %v", err)
	default:
		startPollHealthMonitor(ctx, newPollHealth(siteID, cfg.Dashboard.RefreshInterval(), tracker, ticks.last))
	}

	metricsSrv := maybeStartMetricsServer(cfg.Metrics.Listen, tracker)

	var uiMetrics *ui.Metrics
	if dash != nil {
		uiMetrics = dash.Metrics()
	}
	go displayStats(ctx, time.Second, 30*time.Second, tracker, ticks.last, uiMetrics, surface, fanout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	var uiDone <-chan struct{}
	if dash != nil {
		uiDone = dash.Done()
	}
	log.Println("Dashboard is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case <-uiDone:
		log.Printf("UI: dashboard closed")
	}
	log.Println("Shutting down gracefully...")

	p.Stop()
	cancel()
	handle.Dispose()
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	if polls != nil {
		if err := polls.Close(); err != nil {
			log.Printf("Recorder: close: %v", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			log.Printf("Settings: close: %v", err)
		}
	}
	log.Println("pulseboard stopped")
}

// loadInitialSeries reads the optional initial chart dataset. A blank path
// yields nil, which bootstraps the chart in its no-data state.
func loadInitialSeries(path string) ([]analytics.Series, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return analytics.DecodeSeries(data)
}

// Purpose: Optionally expose poll metrics for Prometheus.
// Key aspects: Uses a private registry; off when addr is blank.
// Upstream: main startup.
// Downstream: http.Server, promhttp.
func maybeStartMetricsServer(addr string, tracker *stats.Tracker) *http.Server {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(stats.NewCollector(metricsNamespace, tracker))
	reg.MustRegister(collectors.NewGoCollector())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("Metrics server listening on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return srv
}
