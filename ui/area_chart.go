package ui

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/tview"

	"pulseboard/analytics"
	"pulseboard/chart"
)

// Lower block glyphs by eighths, index 0 unused.
var eighthBlocks = [9]rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var chartBackground = colorful.Color{R: 0, G: 0, B: 0}

// areaChart is a tview primitive implementing chart.Instance. Series updates
// may arrive from any goroutine; Draw runs on the UI goroutine.
type areaChart struct {
	*tview.Box

	opts   chart.Options
	colors []colorful.Color

	mu       sync.Mutex
	series   []analytics.Series
	disposed bool

	onRender  func()
	onDispose func()
}

func newAreaChart(opts chart.Options, onRender, onDispose func()) *areaChart {
	c := &areaChart{
		Box:       tview.NewBox(),
		opts:      opts,
		onRender:  onRender,
		onDispose: onDispose,
	}
	for _, hex := range opts.Colors {
		col, err := colorful.Hex(hex)
		if err != nil {
			continue
		}
		c.colors = append(c.colors, col)
	}
	if len(c.colors) == 0 {
		c.colors = []colorful.Color{{R: 0.23, G: 0.51, B: 0.96}}
	}
	return c
}

func (c *areaChart) UpdateSeries(series []analytics.Series) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.series = analytics.CloneSeries(series)
	c.mu.Unlock()
	c.Render()
}

func (c *areaChart) Render() {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if !disposed && c.onRender != nil {
		c.onRender()
	}
}

func (c *areaChart) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.series = nil
	c.mu.Unlock()
	if c.onDispose != nil {
		c.onDispose()
	}
}

// Series returns a copy of the visible series.
func (c *areaChart) Series() []analytics.Series {
	c.mu.Lock()
	defer c.mu.Unlock()
	return analytics.CloneSeries(c.series)
}

func (c *areaChart) Draw(screen tcell.Screen) {
	c.Box.DrawForSubclass(screen, c)
	x, y, width, height := c.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}
	series := c.Series()
	if !hasPoints(series) {
		msg := c.opts.NoDataText
		tview.Print(screen, "[gray]"+tview.Escape(msg)+"[-]", x, y+height/2, width, tview.AlignCenter, tcell.ColorGray)
		return
	}

	tmin, tmax, ymax := seriesBounds(series)
	if ymax <= 0 {
		ymax = 1
	}
	top := humanize.Comma(int64(math.Ceil(ymax)))
	gutter := len(top) + 1
	plotX, plotW, plotH := x+gutter, width-gutter, height-1
	if plotW < 2 || plotH < 1 {
		return
	}

	label := tcell.StyleDefault.Foreground(tcell.ColorGray)
	tview.Print(screen, top, x, y, gutter-1, tview.AlignRight, tcell.ColorGray)
	tview.Print(screen, "0", x, y+plotH-1, gutter-1, tview.AlignRight, tcell.ColorGray)
	for row := 0; row < plotH; row++ {
		screen.SetContent(plotX-1, y+row, '│', nil, label)
	}

	// First series is drawn last so it sits on top.
	for si := len(series) - 1; si >= 0; si-- {
		c.drawSeries(screen, series[si], c.colors[si%len(c.colors)], plotX, y, plotW, plotH, tmin, tmax, ymax)
	}

	left, right := c.axisLabel(tmin, tmax-tmin), c.axisLabel(tmax, tmax-tmin)
	tview.Print(screen, left, plotX, y+plotH, plotW, tview.AlignLeft, tcell.ColorGray)
	if tmax != tmin {
		tview.Print(screen, right, plotX, y+plotH, plotW, tview.AlignRight, tcell.ColorGray)
	}
}

func (c *areaChart) drawSeries(screen tcell.Screen, s analytics.Series, base colorful.Color, px, py, pw, ph int, tmin, tmax, ymax float64) {
	if len(s.Data) == 0 {
		return
	}
	curve := newCurve(s.Data, c.opts.Curve == "smooth")
	lo, hi := curve.xs[0], curve.xs[len(curve.xs)-1]
	line := toTcell(base)
	for col := 0; col < pw; col++ {
		t := tmin
		if pw > 1 && tmax > tmin {
			t = tmin + (tmax-tmin)*float64(col)/float64(pw-1)
		}
		if t < lo || t > hi {
			continue
		}
		v := curve.At(t)
		if v <= 0 {
			continue
		}
		eighths := int(math.Round(v / ymax * float64(ph*8)))
		if eighths > ph*8 {
			eighths = ph * 8
		}
		full, rem := eighths/8, eighths%8
		for row := 0; row < full; row++ {
			fg := c.fillColor(base, row, ph)
			if row == full-1 && rem == 0 {
				fg = line
			}
			screen.SetContent(px+col, py+ph-1-row, eighthBlocks[8], nil, tcell.StyleDefault.Foreground(fg))
		}
		if rem > 0 && full < ph {
			screen.SetContent(px+col, py+ph-1-full, eighthBlocks[rem], nil, tcell.StyleDefault.Foreground(line))
		}
	}
}

// fillColor returns the area color at row (0 = bottom) of height rows.
func (c *areaChart) fillColor(base colorful.Color, row, height int) tcell.Color {
	return toTcell(gradientColor(base, c.opts.Fill, row, height))
}

func gradientColor(base colorful.Color, fill chart.Fill, row, height int) colorful.Color {
	alpha := fill.OpacityFrom
	if fill.Type == "gradient" && height > 0 {
		frac := float64(row+1) / float64(height)
		alpha = fill.OpacityTo + (fill.OpacityFrom-fill.OpacityTo)*frac
	}
	if alpha <= 0 {
		return chartBackground
	}
	if alpha > 1 {
		alpha = 1
	}
	// Terminal cells are small; lift the low end so the fill stays visible.
	return chartBackground.BlendLab(base, math.Sqrt(alpha)).Clamped()
}

func (c *areaChart) axisLabel(ms, span float64) string {
	if c.opts.XAxisType != "datetime" {
		return humanize.Comma(int64(ms))
	}
	t := time.UnixMilli(int64(ms)).Local()
	if time.Duration(span)*time.Millisecond >= 36*time.Hour {
		return t.Format("Jan 02")
	}
	return t.Format("15:04")
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

func hasPoints(series []analytics.Series) bool {
	for _, s := range series {
		if len(s.Data) > 0 {
			return true
		}
	}
	return false
}

func seriesBounds(series []analytics.Series) (tmin, tmax, ymax float64) {
	first := true
	for _, s := range series {
		for _, p := range s.Data {
			t := float64(p.Timestamp)
			if first {
				tmin, tmax = t, t
				first = false
			}
			tmin = math.Min(tmin, t)
			tmax = math.Max(tmax, t)
			ymax = math.Max(ymax, p.Value)
		}
	}
	return tmin, tmax, ymax
}

// curve interpolates a series. Smooth curves use monotone cubic Hermite
// splines (Fritsch-Carlson), which never overshoot the data.
type curve struct {
	xs, ys, ms []float64
	smooth     bool
}

func newCurve(points []analytics.Point, smooth bool) *curve {
	sorted := append([]analytics.Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })
	c := &curve{smooth: smooth}
	for _, p := range sorted {
		x := float64(p.Timestamp)
		if n := len(c.xs); n > 0 && c.xs[n-1] == x {
			c.ys[n-1] = p.Value
			continue
		}
		c.xs = append(c.xs, x)
		c.ys = append(c.ys, p.Value)
	}
	if smooth {
		c.ms = monotoneTangents(c.xs, c.ys)
	}
	return c
}

func monotoneTangents(xs, ys []float64) []float64 {
	n := len(xs)
	ms := make([]float64, n)
	if n < 2 {
		return ms
	}
	d := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		d[i] = (ys[i+1] - ys[i]) / (xs[i+1] - xs[i])
	}
	ms[0], ms[n-1] = d[0], d[n-2]
	for i := 1; i < n-1; i++ {
		if d[i-1]*d[i] <= 0 {
			ms[i] = 0
			continue
		}
		ms[i] = (d[i-1] + d[i]) / 2
	}
	for i := 0; i < n-1; i++ {
		if d[i] == 0 {
			ms[i], ms[i+1] = 0, 0
			continue
		}
		a, b := ms[i]/d[i], ms[i+1]/d[i]
		if s := a*a + b*b; s > 9 {
			t := 3 / math.Sqrt(s)
			ms[i] = t * a * d[i]
			ms[i+1] = t * b * d[i]
		}
	}
	return ms
}

// At evaluates the curve at x, clamping outside the data range.
func (c *curve) At(x float64) float64 {
	n := len(c.xs)
	switch {
	case n == 0:
		return 0
	case n == 1 || x <= c.xs[0]:
		return c.ys[0]
	case x >= c.xs[n-1]:
		return c.ys[n-1]
	}
	i := sort.SearchFloat64s(c.xs, x)
	if c.xs[i] == x {
		return c.ys[i]
	}
	i--
	h := c.xs[i+1] - c.xs[i]
	t := (x - c.xs[i]) / h
	if !c.smooth {
		return c.ys[i] + (c.ys[i+1]-c.ys[i])*t
	}
	t2, t3 := t*t, t*t*t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return h00*c.ys[i] + h10*h*c.ms[i] + h01*c.ys[i+1] + h11*h*c.ms[i+1]
}
