// Package analytics defines the per-site snapshot delivered by the dashboard
// backend on each poll, plus the display rules shared by every renderer.
package analytics

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Metric identifiers. They double as JSON keys inside the metrics block and
// as view slot prefixes.
const (
	MetricActiveUsers        = "activeUsers"
	MetricPageViews          = "pageViews"
	MetricVisitors           = "visitors"
	MetricBounceRate         = "bounceRate"
	MetricAvgSessionDuration = "avgSessionDuration"
)

// MetricIDs lists the card metrics in display order.
var MetricIDs = []string{
	MetricPageViews,
	MetricVisitors,
	MetricBounceRate,
	MetricAvgSessionDuration,
}

// Report identifiers, in display order.
const (
	ReportTopPages     = "topPages"
	ReportReferrers    = "referrers"
	ReportEvents       = "events"
	ReportDevices      = "devices"
	ReportBrowsers     = "browsers"
	ReportLanguages    = "languages"
	ReportUTMSources   = "utmSources"
	ReportUTMMediums   = "utmMediums"
	ReportUTMCampaigns = "utmCampaigns"
)

var ReportIDs = []string{
	ReportTopPages,
	ReportReferrers,
	ReportEvents,
	ReportDevices,
	ReportBrowsers,
	ReportLanguages,
	ReportUTMSources,
	ReportUTMMediums,
	ReportUTMCampaigns,
}

// Snapshot is one poll result. Every top-level field is optional and applied
// independently; nil means "absent, leave the view alone". A non-nil empty
// ChartData is present and renders the no-data state.
type Snapshot struct {
	ActiveUsers *int          `json:"activeUsers,omitempty"`
	Metrics     *MetricsBlock `json:"metrics,omitempty"`
	Reports     *ReportsBlock `json:"reports,omitempty"`
	ChartData   []Series      `json:"chartData,omitempty"`
}

// Metric is a scalar with its signed percentage change against the prior period.
type Metric struct {
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

// MetricsBlock holds the card metrics. Missing metrics are skipped on apply.
type MetricsBlock struct {
	PageViews          *Metric `json:"pageViews,omitempty"`
	Visitors           *Metric `json:"visitors,omitempty"`
	BounceRate         *Metric `json:"bounceRate,omitempty"`
	AvgSessionDuration *Metric `json:"avgSessionDuration,omitempty"`
}

// Get returns the metric for id, or nil when absent or unknown.
func (m *MetricsBlock) Get(id string) *Metric {
	if m == nil {
		return nil
	}
	switch id {
	case MetricPageViews:
		return m.PageViews
	case MetricVisitors:
		return m.Visitors
	case MetricBounceRate:
		return m.BounceRate
	case MetricAvgSessionDuration:
		return m.AvgSessionDuration
	}
	return nil
}

// Entry is one row of a ranked report. Percentage only sizes the bar.
type Entry struct {
	Key        string  `json:"key"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ReportsBlock holds the fixed set of ranked lists. Order inside each list is
// the backend's rank order and is never re-sorted.
type ReportsBlock struct {
	TopPages     []Entry `json:"topPages,omitempty"`
	Referrers    []Entry `json:"referrers,omitempty"`
	Events       []Entry `json:"events,omitempty"`
	Devices      []Entry `json:"devices,omitempty"`
	Browsers     []Entry `json:"browsers,omitempty"`
	Languages    []Entry `json:"languages,omitempty"`
	UTMSources   []Entry `json:"utmSources,omitempty"`
	UTMMediums   []Entry `json:"utmMediums,omitempty"`
	UTMCampaigns []Entry `json:"utmCampaigns,omitempty"`
}

// Entries returns the list for id. ok is false for unknown ids.
func (r *ReportsBlock) Entries(id string) (entries []Entry, ok bool) {
	if r == nil {
		return nil, isReportID(id)
	}
	switch id {
	case ReportTopPages:
		return r.TopPages, true
	case ReportReferrers:
		return r.Referrers, true
	case ReportEvents:
		return r.Events, true
	case ReportDevices:
		return r.Devices, true
	case ReportBrowsers:
		return r.Browsers, true
	case ReportLanguages:
		return r.Languages, true
	case ReportUTMSources:
		return r.UTMSources, true
	case ReportUTMMediums:
		return r.UTMMediums, true
	case ReportUTMCampaigns:
		return r.UTMCampaigns, true
	}
	return nil, false
}

func isReportID(id string) bool {
	for _, known := range ReportIDs {
		if known == id {
			return true
		}
	}
	return false
}

// Decode parses a snapshot body.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("analytics: decode snapshot: %w", err)
	}
	return s, nil
}

// DecodeSeries parses an initial chart dataset. It accepts either a bare
// series array or a snapshot object whose chartData is used.
func DecodeSeries(data []byte) ([]Series, error) {
	trimmed := firstNonSpace(data)
	switch trimmed {
	case '[':
		var series []Series
		if err := json.Unmarshal(data, &series); err != nil {
			return nil, fmt.Errorf("analytics: decode series: %w", err)
		}
		return series, nil
	case '{':
		s, err := Decode(data)
		if err != nil {
			return nil, err
		}
		return s.ChartData, nil
	case 0:
		return nil, nil
	}
	return nil, errors.New("analytics: initial dataset must be a JSON array or object")
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}
