package analytics

import (
	"testing"
)

func TestDecodePartialSnapshot(t *testing.T) {
	s, err := Decode([]byte(`{"activeUsers": 42}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if s.ActiveUsers == nil || *s.ActiveUsers != 42 {
		t.Fatalf("expected activeUsers=42, got %v", s.ActiveUsers)
	}
	if s.Metrics != nil || s.Reports != nil || s.ChartData != nil {
		t.Fatalf("expected absent fields to stay nil: %+v", s)
	}
}

func TestDecodeFullSnapshot(t *testing.T) {
	body := `{
  "activeUsers": 3,
  "metrics": {
    "pageViews": {"value": 1200, "change": 12.5},
    "bounceRate": {"value": 41.2, "change": -5}
  },
  "reports": {
    "topPages": [{"key": "/", "count": 10, "percentage": 62.5}, {"key": "/pricing", "count": 6, "percentage": 37.5}],
    "referrers": []
  },
  "chartData": [{"name": "Views", "data": [[1700000000000, 0], [1700000060000, 3]]}]
}`
	s, err := Decode([]byte(body))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if m := s.Metrics.Get(MetricPageViews); m == nil || m.Value != 1200 || m.Change != 12.5 {
		t.Fatalf("unexpected pageViews metric: %+v", m)
	}
	if m := s.Metrics.Get(MetricVisitors); m != nil {
		t.Fatalf("expected missing visitors metric, got %+v", m)
	}
	pages, ok := s.Reports.Entries(ReportTopPages)
	if !ok || len(pages) != 2 || pages[1].Key != "/pricing" {
		t.Fatalf("unexpected topPages: %+v", pages)
	}
	if _, ok := s.Reports.Entries("nope"); ok {
		t.Fatalf("expected unknown report id to be rejected")
	}
	if len(s.ChartData) != 1 || len(s.ChartData[0].Data) != 2 {
		t.Fatalf("unexpected chart data: %+v", s.ChartData)
	}
	if p := s.ChartData[0].Data[1]; p.Timestamp != 1700000060000 || p.Value != 3 {
		t.Fatalf("unexpected point: %+v", p)
	}
}

func TestDecodeEmptyChartDataIsPresent(t *testing.T) {
	s, err := Decode([]byte(`{"chartData": []}`))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if s.ChartData == nil {
		t.Fatalf("expected empty chartData to decode as present")
	}
}

func TestPointRejectsMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{"chartData": [{"name": "x", "data": [[1]]}]}`)); err == nil {
		t.Fatalf("expected error for single-element point")
	}
	s, err := Decode([]byte(`{"chartData": [{"name": "x", "data": [[1, null]]}]}`))
	if err != nil {
		t.Fatalf("null value should decode: %v", err)
	}
	if s.ChartData[0].Data[0].Value != 0 {
		t.Fatalf("expected null value to decode as zero")
	}
}

func TestDecodeSeriesAcceptsArrayOrSnapshot(t *testing.T) {
	arr, err := DecodeSeries([]byte(` [{"name": "Views", "data": [[1, 2]]}]`))
	if err != nil || len(arr) != 1 {
		t.Fatalf("array form: %v %+v", err, arr)
	}
	obj, err := DecodeSeries([]byte(`{"chartData": [{"name": "Views", "data": [[1, 2]]}]}`))
	if err != nil || len(obj) != 1 {
		t.Fatalf("object form: %v %+v", err, obj)
	}
	none, err := DecodeSeries([]byte("  "))
	if err != nil || none != nil {
		t.Fatalf("blank dataset should be empty: %v %+v", err, none)
	}
	if _, err := DecodeSeries([]byte(`42`)); err == nil {
		t.Fatalf("expected scalar dataset to be rejected")
	}
}

func TestChartIsEmpty(t *testing.T) {
	zeros := []Series{{Name: "Views", Data: []Point{{1, 0}, {2, 0}}}}
	if !ChartIsEmpty(zeros) {
		t.Fatalf("all-zero first series must be empty")
	}
	withValue := []Series{{Name: "Views", Data: []Point{{1, 0}, {2, 3}}}}
	if ChartIsEmpty(withValue) {
		t.Fatalf("series with a positive point must not be empty")
	}
	if !ChartIsEmpty(nil) || !ChartIsEmpty([]Series{}) {
		t.Fatalf("missing series must be empty")
	}
	secondOnly := []Series{
		{Name: "Views", Data: []Point{{1, 0}}},
		{Name: "Visitors", Data: []Point{{1, 9}}},
	}
	if !ChartIsEmpty(secondOnly) {
		t.Fatalf("only the first series decides emptiness")
	}
	negative := []Series{{Name: "Delta", Data: []Point{{1, -4}}}}
	if !ChartIsEmpty(negative) {
		t.Fatalf("negative values do not count as data")
	}
}

func TestCloneSeriesDoesNotAlias(t *testing.T) {
	src := []Series{{Name: "Views", Data: []Point{{1, 1}}}}
	dup := CloneSeries(src)
	dup[0].Data[0].Value = 99
	if src[0].Data[0].Value != 1 {
		t.Fatalf("clone aliases source data")
	}
}
