package render

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"pulseboard/analytics"
)

// NoDataMarkup is the fixed placeholder for an empty report panel.
const NoDataMarkup = "[gray]No data available[-]"

const (
	reportKeyWidth   = 32
	reportCountWidth = 10
	reportBarWidth   = 20
)

type reportLabels struct {
	title  string
	key    string
	metric string
}

var reportHeaders = map[string]reportLabels{
	analytics.ReportTopPages:     {"Top Pages", "Page", "Views"},
	analytics.ReportReferrers:    {"Referrers", "Source", "Visitors"},
	analytics.ReportEvents:       {"Events", "Event", "Count"},
	analytics.ReportDevices:      {"Devices", "Device", "Visitors"},
	analytics.ReportBrowsers:     {"Browsers", "Browser", "Visitors"},
	analytics.ReportLanguages:    {"Languages", "Language", "Visitors"},
	analytics.ReportUTMSources:   {"UTM Sources", "Source", "Visitors"},
	analytics.ReportUTMMediums:   {"UTM Mediums", "Medium", "Visitors"},
	analytics.ReportUTMCampaigns: {"UTM Campaigns", "Campaign", "Visitors"},
}

// ReportTitle returns the panel title for a report id.
func ReportTitle(id string) string {
	if h, ok := reportHeaders[id]; ok {
		return h.title
	}
	return id
}

// ReportMarkup builds the full panel markup for entries: a header line plus
// one row per entry in the given order. Empty input yields NoDataMarkup.
func ReportMarkup(id string, entries []analytics.Entry) string {
	if len(entries) == 0 {
		return NoDataMarkup
	}
	h, ok := reportHeaders[id]
	if !ok {
		h = reportLabels{title: id, key: "Key", metric: "Count"}
	}
	var b strings.Builder
	b.Grow(64 * (len(entries) + 1))
	b.WriteString("[yellow]")
	b.WriteString(runewidth.FillRight(h.key, reportKeyWidth))
	b.WriteByte(' ')
	b.WriteString(runewidth.FillLeft(h.metric, reportCountWidth))
	b.WriteString("[-]")
	for _, e := range entries {
		b.WriteByte('\n')
		key := runewidth.Truncate(e.Key, reportKeyWidth, "…")
		key = runewidth.FillRight(key, reportKeyWidth)
		b.WriteString(tview.Escape(key))
		b.WriteByte(' ')
		b.WriteString(runewidth.FillLeft(humanize.Comma(e.Count), reportCountWidth))
		b.WriteByte(' ')
		b.WriteString(bar(e.Percentage))
	}
	return b.String()
}

// bar draws percentage as a fixed-width bar. Values outside 0-100 are
// clamped for drawing only.
func bar(percentage float64) string {
	if math.IsNaN(percentage) {
		percentage = 0
	}
	percentage = math.Max(0, math.Min(100, percentage))
	filled := int(math.Round(percentage / 100 * reportBarWidth))
	return "[blue]" + strings.Repeat("█", filled) + "[-]" + strings.Repeat("░", reportBarWidth-filled)
}
