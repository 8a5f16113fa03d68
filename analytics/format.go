package analytics

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// Polarity is the visual class of a change indicator.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

const (
	GlyphUp   = "↑"
	GlyphDown = "↓"
)

// PolarityOf maps a change to its class. Zero counts as positive.
func PolarityOf(change float64) Polarity {
	if change < 0 {
		return PolarityNegative
	}
	return PolarityPositive
}

// FormatChange returns the polarity and the indicator text: an arrow glyph and
// the literal percentage, made absolute for negative changes.
func FormatChange(change float64) (Polarity, string) {
	polarity := PolarityOf(change)
	glyph := GlyphUp
	if polarity == PolarityNegative {
		glyph = GlyphDown
		change = math.Abs(change)
	}
	return polarity, glyph + " " + strconv.FormatFloat(change, 'f', -1, 64) + "%"
}

// FormatMetricValue renders a metric value for its card.
func FormatMetricValue(id string, value float64) string {
	switch id {
	case MetricBounceRate:
		return strconv.FormatFloat(value, 'f', 1, 64) + "%"
	case MetricAvgSessionDuration:
		return FormatSessionDuration(value)
	default:
		return FormatCount(value)
	}
}

// FormatCount renders an integer count with thousands separators.
func FormatCount(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "0"
	}
	return humanize.Comma(int64(math.Round(value)))
}

// FormatSessionDuration renders seconds as "45s", "2m 05s" or "1h 02m".
func FormatSessionDuration(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
