package render

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dustin/go-humanize"

	"pulseboard/analytics"
	"pulseboard/chart"
)

// ErrNoChart is returned when chart data arrives before the chart bootstrap.
var ErrNoChart = errors.New("render: chart not bootstrapped")

// Renderer applies snapshots to a View and owns the chart handle. Applies are
// serialized so no two field-group writes interleave.
type Renderer struct {
	mu      sync.Mutex
	view    View
	chart   *chart.Handle
	reports []string
	logf    func(format string, args ...any)
}

// Option tweaks a Renderer.
type Option func(*Renderer)

// WithReports limits which report panels are rendered.
func WithReports(ids []string) Option {
	return func(r *Renderer) {
		if len(ids) > 0 {
			r.reports = append([]string(nil), ids...)
		}
	}
}

// WithLogf routes renderer log lines.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(r *Renderer) {
		if logf != nil {
			r.logf = logf
		}
	}
}

func NewRenderer(view View, handle *chart.Handle, opts ...Option) *Renderer {
	r := &Renderer{
		view:    view,
		chart:   handle,
		reports: analytics.ReportIDs,
		logf:    log.Printf,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplySnapshot applies every present field group of s. Absent groups leave
// the view untouched. The only error is ErrNoChart, after every other group
// has already been applied.
func (r *Renderer) ApplySnapshot(s analytics.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ActiveUsers != nil {
		r.applyActiveUsers(*s.ActiveUsers)
	}
	if s.Metrics != nil {
		for _, id := range analytics.MetricIDs {
			if m := s.Metrics.Get(id); m != nil {
				r.applyMetric(id, m.Value, m.Change)
			}
		}
	}
	if s.Reports != nil {
		for _, id := range r.reports {
			entries, _ := s.Reports.Entries(id)
			r.applyReport(id, entries)
		}
	}
	if s.ChartData != nil {
		return r.applyChart(s.ChartData)
	}
	return nil
}

func (r *Renderer) ApplyActiveUsers(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyActiveUsers(n)
}

// ApplyMetric writes one metric card: the formatted value and the change
// indicator with exactly one polarity class.
func (r *Renderer) ApplyMetric(id string, value, change float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyMetric(id, value, change)
}

// ApplyReport fully replaces one report panel.
func (r *Renderer) ApplyReport(id string, entries []analytics.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyReport(id, entries)
}

// ApplyChart swaps the chart's series in place.
func (r *Renderer) ApplyChart(series []analytics.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyChart(series)
}

// BootstrapChart constructs the chart in container from the initial dataset,
// disposing any previous instance first.
func (r *Renderer) BootstrapChart(container string, initial []analytics.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.chart.Replace(container, initial); err != nil {
		return fmt.Errorf("render: bootstrap chart: %w", err)
	}
	return nil
}

func (r *Renderer) applyActiveUsers(n int) {
	r.view.SetText(SlotActiveUsers, humanize.Comma(int64(n)))
}

func (r *Renderer) applyMetric(id string, value, change float64) {
	r.view.SetText(ValueSlot(id), analytics.FormatMetricValue(id, value))
	polarity, text := analytics.FormatChange(change)
	other := analytics.PolarityNegative
	if polarity == analytics.PolarityNegative {
		other = analytics.PolarityPositive
	}
	r.view.SwapClass(ChangeSlot(id), string(polarity), string(other))
	r.view.SetText(ChangeSlot(id), text)
}

func (r *Renderer) applyReport(id string, entries []analytics.Entry) {
	r.view.ReplaceContent(ReportSlot(id), ReportMarkup(id, entries))
}

func (r *Renderer) applyChart(series []analytics.Series) error {
	if err := r.chart.Update(series); err != nil {
		if errors.Is(err, chart.ErrNotInitialized) {
			r.logf("Renderer: chart update skipped: %v", ErrNoChart)
			return ErrNoChart
		}
		return fmt.Errorf("render: chart update: %w", err)
	}
	return nil
}
