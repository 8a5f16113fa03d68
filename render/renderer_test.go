package render

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"pulseboard/analytics"
	"pulseboard/chart"
)

func newTestRenderer(t *testing.T) (*Renderer, *Document) {
	t.Helper()
	doc := NewDocument()
	handle := chart.NewHandle(doc.ChartFactory(), chart.DefaultOptions())
	r := NewRenderer(doc, handle, WithLogf(t.Logf))
	if err := r.BootstrapChart(SlotChart, nil); err != nil {
		t.Fatalf("BootstrapChart: %v", err)
	}
	return r, doc
}

func intPtr(n int) *int { return &n }

func fullSnapshot() analytics.Snapshot {
	return analytics.Snapshot{
		ActiveUsers: intPtr(17),
		Metrics: &analytics.MetricsBlock{
			PageViews:          &analytics.Metric{Value: 12345, Change: 12.5},
			Visitors:           &analytics.Metric{Value: 800, Change: -5},
			BounceRate:         &analytics.Metric{Value: 41.2, Change: 0},
			AvgSessionDuration: &analytics.Metric{Value: 125, Change: 3},
		},
		Reports: &analytics.ReportsBlock{
			TopPages: []analytics.Entry{
				{Key: "/home", Count: 1200, Percentage: 60},
				{Key: "/pricing", Count: 800, Percentage: 40},
			},
			Browsers: []analytics.Entry{{Key: "Firefox", Count: 5, Percentage: 100}},
		},
		ChartData: []analytics.Series{{
			Name: "Views",
			Data: []analytics.Point{{Timestamp: 1000, Value: 0}, {Timestamp: 2000, Value: 3}},
		}},
	}
}

func TestApplySnapshotIdempotent(t *testing.T) {
	r, doc := newTestRenderer(t)
	snap := fullSnapshot()
	if err := r.ApplySnapshot(snap); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	first := doc.Snapshot()
	if err := r.ApplySnapshot(snap); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	second := doc.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second apply changed state:\nfirst=%+v\nsecond=%+v", first, second)
	}
	top := second[ReportSlot(analytics.ReportTopPages)].Content
	if strings.Count(top, "/home") != 1 {
		t.Fatalf("expected exactly one /home row, got:\n%s", top)
	}
	change := second[ChangeSlot(analytics.MetricPageViews)]
	if len(change.Classes) != 1 {
		t.Fatalf("expected one polarity class, got %v", change.Classes)
	}
}

func TestPartialSnapshotOnlyTouchesPresentFields(t *testing.T) {
	r, doc := newTestRenderer(t)
	if err := r.ApplySnapshot(fullSnapshot()); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	before := doc.Snapshot()

	if err := r.ApplySnapshot(analytics.Snapshot{ActiveUsers: intPtr(42)}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	after := doc.Snapshot()
	for id, el := range before {
		if id == SlotActiveUsers {
			continue
		}
		if !reflect.DeepEqual(el, after[id]) {
			t.Fatalf("element %s changed on partial apply: %+v -> %+v", id, el, after[id])
		}
	}
	if after[SlotActiveUsers].Text != "42" {
		t.Fatalf("expected active users 42, got %q", after[SlotActiveUsers].Text)
	}
}

func TestMetricsBlockSkipsMissingMetrics(t *testing.T) {
	r, doc := newTestRenderer(t)
	r.ApplyMetric(analytics.MetricVisitors, 10, 1)
	err := r.ApplySnapshot(analytics.Snapshot{Metrics: &analytics.MetricsBlock{
		PageViews: &analytics.Metric{Value: 5, Change: 1},
	}})
	if err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	el, _ := doc.Element(ValueSlot(analytics.MetricVisitors))
	if el.Text != "10" {
		t.Fatalf("visitors card should be untouched, got %q", el.Text)
	}
}

func TestPolarityMapping(t *testing.T) {
	cases := []struct {
		change float64
		class  string
		text   string
	}{
		{0, "positive", "↑ 0%"},
		{12.5, "positive", "↑ 12.5%"},
		{-5, "negative", "↓ 5%"},
	}
	r, doc := newTestRenderer(t)
	for _, tc := range cases {
		r.ApplyMetric(analytics.MetricPageViews, 1, tc.change)
		el, _ := doc.Element(ChangeSlot(analytics.MetricPageViews))
		if len(el.Classes) != 1 || el.Classes[0] != tc.class {
			t.Fatalf("change %v: expected class %s, got %v", tc.change, tc.class, el.Classes)
		}
		if el.Text != tc.text {
			t.Fatalf("change %v: expected %q, got %q", tc.change, tc.text, el.Text)
		}
	}
}

func TestChartEmptinessRule(t *testing.T) {
	r, doc := newTestRenderer(t)
	zero := []analytics.Series{{Name: "Views", Data: []analytics.Point{{Timestamp: 1, Value: 0}, {Timestamp: 2, Value: 0}}}}
	if err := r.ApplyChart(zero); err != nil {
		t.Fatalf("ApplyChart: %v", err)
	}
	el, _ := doc.Element(SlotChart)
	if el.Series == nil || len(el.Series) != 0 {
		t.Fatalf("expected empty series set, got %+v", el.Series)
	}
	if el.NoData == "" {
		t.Fatalf("expected no-data text on chart")
	}

	real := []analytics.Series{{Name: "Views", Data: []analytics.Point{{Timestamp: 1, Value: 0}, {Timestamp: 2, Value: 3}}}}
	if err := r.ApplyChart(real); err != nil {
		t.Fatalf("ApplyChart: %v", err)
	}
	el, _ = doc.Element(SlotChart)
	if !reflect.DeepEqual(el.Series, real) {
		t.Fatalf("expected series unmodified, got %+v", el.Series)
	}
}

func TestApplyChartBeforeBootstrap(t *testing.T) {
	doc := NewDocument()
	r := NewRenderer(doc, chart.NewHandle(doc.ChartFactory(), chart.DefaultOptions()), WithLogf(t.Logf))
	snap := analytics.Snapshot{ActiveUsers: intPtr(3), ChartData: []analytics.Series{}}
	if err := r.ApplySnapshot(snap); !errors.Is(err, ErrNoChart) {
		t.Fatalf("expected ErrNoChart, got %v", err)
	}
	el, _ := doc.Element(SlotActiveUsers)
	if el.Text != "3" {
		t.Fatalf("other groups must still apply, got %q", el.Text)
	}
}

func TestReportPlaceholderReplacesRows(t *testing.T) {
	r, doc := newTestRenderer(t)
	r.ApplyReport(analytics.ReportReferrers, []analytics.Entry{{Key: "google", Count: 3, Percentage: 30}})
	r.ApplyReport(analytics.ReportReferrers, nil)
	el, _ := doc.Element(ReportSlot(analytics.ReportReferrers))
	if el.Content != NoDataMarkup {
		t.Fatalf("expected placeholder markup, got %q", el.Content)
	}

	// A present reports block with a missing list renders the placeholder too.
	if err := r.ApplySnapshot(analytics.Snapshot{Reports: &analytics.ReportsBlock{}}); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}
	for _, id := range analytics.ReportIDs {
		el, _ := doc.Element(ReportSlot(id))
		if el.Content != NoDataMarkup {
			t.Fatalf("report %s: expected placeholder, got %q", id, el.Content)
		}
	}
}

func TestReportMarkupPreservesOrder(t *testing.T) {
	markup := ReportMarkup(analytics.ReportTopPages, []analytics.Entry{
		{Key: "/b", Count: 1, Percentage: 150},
		{Key: "/a", Count: 1234, Percentage: -3},
		{Key: "[red]x", Count: 2, Percentage: 50},
	})
	lines := strings.Split(markup, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d:\n%s", len(lines), markup)
	}
	if !strings.Contains(lines[0], "Page") || !strings.Contains(lines[0], "Views") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "/b") || !strings.HasPrefix(lines[2], "/a") {
		t.Fatalf("rank order not preserved:\n%s", markup)
	}
	if !strings.Contains(lines[2], "1,234") {
		t.Fatalf("expected comma-grouped count, got %q", lines[2])
	}
	if strings.Count(lines[1], "█") != reportBarWidth {
		t.Fatalf("expected full bar for >100%%, got %q", lines[1])
	}
	if strings.Contains(lines[2], "█") {
		t.Fatalf("expected empty bar for negative percentage, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[red[]x") {
		t.Fatalf("expected escaped key, got %q", lines[3])
	}
}

func TestDocumentSwapClassNoDuplicates(t *testing.T) {
	doc := NewDocument()
	doc.SwapClass("x", "positive", "negative")
	doc.SwapClass("x", "positive", "negative")
	doc.SwapClass("x", "negative", "positive")
	el, _ := doc.Element("x")
	if len(el.Classes) != 1 || el.Classes[0] != "negative" {
		t.Fatalf("unexpected classes %v", el.Classes)
	}
}
