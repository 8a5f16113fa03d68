// Package chart owns the single live chart instance bound to a container.
//
// The Handle is the only path that constructs or disposes an Instance. Routine
// data updates go through Update, which swaps series in place; Replace is
// reserved for the cold bootstrap and always disposes the prior instance first.
package chart

import (
	"errors"
	"fmt"
	"sync"

	"pulseboard/analytics"
)

// ErrNotInitialized is returned by Update before any instance exists.
var ErrNotInitialized = errors.New("chart: not initialized")

// Fill describes the area fill under the series.
type Fill struct {
	Type        string
	OpacityFrom float64
	OpacityTo   float64
}

// Options configures a chart at construction time.
type Options struct {
	Type           string
	Height         int
	ZoomEnabled    bool
	ToolbarVisible bool
	Curve          string
	XAxisType      string
	Fill           Fill
	NoDataText     string
	Colors         []string
}

// DefaultOptions returns the dashboard's fixed chart configuration.
func DefaultOptions() Options {
	return Options{
		Type:           "area",
		Height:         12,
		ZoomEnabled:    false,
		ToolbarVisible: false,
		Curve:          "smooth",
		XAxisType:      "datetime",
		Fill: Fill{
			Type:        "gradient",
			OpacityFrom: 0.45,
			OpacityTo:   0.05,
		},
		NoDataText: "No data available",
		Colors:     []string{"#3b82f6", "#10b981", "#f59e0b"},
	}
}

// Instance is a constructed chart bound to one container.
type Instance interface {
	UpdateSeries(series []analytics.Series)
	Render()
	Dispose()
}

// Factory constructs a chart inside container.
type Factory func(container string, opts Options) (Instance, error)

// Handle holds at most one live Instance.
type Handle struct {
	mu        sync.Mutex
	factory   Factory
	opts      Options
	container string
	live      Instance
}

// NewHandle returns an empty handle that builds instances with factory.
func NewHandle(factory Factory, opts Options) *Handle {
	return &Handle{factory: factory, opts: opts}
}

// Replace disposes any live instance, constructs a new one in container,
// seeds it with initial (or the empty set when initial has no positive
// values) and renders it once.
func (h *Handle) Replace(container string, initial []analytics.Series) error {
	if h == nil || h.factory == nil {
		return errors.New("chart: no factory")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live != nil {
		h.live.Dispose()
		h.live = nil
		h.container = ""
	}
	inst, err := h.factory(container, h.opts)
	if err != nil {
		return fmt.Errorf("chart: construct %s: %w", container, err)
	}
	inst.UpdateSeries(seriesFor(initial))
	inst.Render()
	h.live = inst
	h.container = container
	return nil
}

// Update swaps the live instance's series in place.
func (h *Handle) Update(series []analytics.Series) error {
	if h == nil {
		return ErrNotInitialized
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live == nil {
		return ErrNotInitialized
	}
	h.live.UpdateSeries(seriesFor(series))
	return nil
}

// Live reports whether an instance exists and which container holds it.
func (h *Handle) Live() (string, bool) {
	if h == nil {
		return "", false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.container, h.live != nil
}

// Dispose tears down the live instance, if any.
func (h *Handle) Dispose() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live != nil {
		h.live.Dispose()
		h.live = nil
		h.container = ""
	}
}

func seriesFor(series []analytics.Series) []analytics.Series {
	if analytics.ChartIsEmpty(series) {
		return []analytics.Series{}
	}
	return analytics.CloneSeries(series)
}
