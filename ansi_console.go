package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"pulseboard/analytics"
	"pulseboard/chart"
	"pulseboard/clock"
	"pulseboard/config"
	"pulseboard/render"
	"pulseboard/ui"
)

const (
	defaultANSIWidth = 96
	ansiReportRows   = 6
	ansiSystemLines  = 8
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// ansiConsole renders the dashboard document as plain lines with ANSI colors
// on a fixed cadence. It backs both ui.mode=ansi and, with rendering off, the
// headless mode where only the log shows progress.
type ansiConsole struct {
	doc      *render.Document
	progress *ui.ProgressModel
	reports  []string
	out      io.Writer
	width    int
	refresh  time.Duration
	color    bool
	clear    bool
	render   bool

	mu        sync.Mutex
	stats     []string
	system    ringPane
	renderBuf bytes.Buffer
	writer    *ansiWriter

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ ui.Surface = (*ansiConsole)(nil)

type ringPane struct {
	lines []string
	idx   int
	count int
}

// Purpose: Construct the ANSI console surface.
// Key aspects: Clamps the refresh interval; the render loop only starts when
// allowRender is set and the interval is positive.
// Upstream: main surface selection.
// Downstream: refreshLoop goroutine.
func newANSIConsole(uiCfg config.UIConfig, out io.Writer, width int, allowRender bool, clk clock.Clock) *ansiConsole {
	refresh := time.Duration(uiCfg.RefreshMS) * time.Millisecond
	const minRefresh = 16 * time.Millisecond
	if refresh > 0 && refresh < minRefresh {
		log.Printf("UI: clamping refresh interval to %dms (requested %dms too low)", minRefresh/time.Millisecond, refresh/time.Millisecond)
		refresh = minRefresh
	}
	if width <= 0 {
		width = defaultANSIWidth
	}
	reports := uiCfg.Reports
	if len(reports) == 0 {
		reports = analytics.ReportIDs
	}
	c := &ansiConsole{
		doc:      render.NewDocument(),
		progress: ui.NewProgressModel(clk),
		reports:  append([]string(nil), reports...),
		out:      out,
		width:    width,
		refresh:  refresh,
		color:    uiCfg.Color,
		clear:    uiCfg.ClearScreen,
		render:   allowRender && out != nil,
		system:   ringPane{lines: make([]string, ansiSystemLines)},
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.writer = &ansiWriter{append: c.AppendSystem}
	if c.render && c.refresh > 0 {
		go c.refreshLoop()
	} else {
		close(c.done)
	}
	return c
}

func (c *ansiConsole) SetText(id, text string) { c.doc.SetText(id, text) }

func (c *ansiConsole) SwapClass(id, add string, remove ...string) {
	c.doc.SwapClass(id, add, remove...)
}

func (c *ansiConsole) ReplaceContent(id, markup string) { c.doc.ReplaceContent(id, markup) }

func (c *ansiConsole) ChartFactory() chart.Factory { return c.doc.ChartFactory() }

func (c *ansiConsole) Restart(interval time.Duration) { c.progress.Restart(interval) }

func (c *ansiConsole) WaitReady() {}

// Done closes when the render loop exits. Without a loop it is already closed.
func (c *ansiConsole) Done() <-chan struct{} { return c.done }

func (c *ansiConsole) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
}

func (c *ansiConsole) SetStats(lines []string) {
	c.mu.Lock()
	c.stats = append(c.stats[:0], lines...)
	c.mu.Unlock()
}

func (c *ansiConsole) AppendSystem(line string) {
	c.mu.Lock()
	c.system.lines[c.system.idx] = line
	c.system.idx = (c.system.idx + 1) % len(c.system.lines)
	if c.system.count < len(c.system.lines) {
		c.system.count++
	}
	c.mu.Unlock()
}

// SystemWriter routes log output into the system pane while rendering;
// headless mode keeps logs on the original console.
func (c *ansiConsole) SystemWriter() io.Writer {
	if !c.render {
		return nil
	}
	return c.writer
}

// Purpose: Periodic render loop.
// Key aspects: Recovers panics so a bad frame never kills the process.
// Upstream: newANSIConsole.
// Downstream: renderFrame.
func (c *ansiConsole) refreshLoop() {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "ANSI console panic: %v\n", r)
		}
	}()
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.renderFrame()
		case <-c.quit:
			return
		}
	}
}

func (c *ansiConsole) renderFrame() {
	frame := c.frame()
	c.renderBuf.Reset()
	if c.clear {
		c.renderBuf.WriteString("\x1b[2J\x1b[H")
	}
	for _, line := range frame {
		c.renderBuf.WriteString(formatLine(line, c.width, c.color))
		c.renderBuf.WriteByte('\n')
	}
	_, _ = c.renderBuf.WriteTo(c.out)
}

// frame lays out the document as markup lines, before color handling.
func (c *ansiConsole) frame() []string {
	elems := c.doc.Snapshot()
	lines := make([]string, 0, 48)

	active := elems[render.SlotActiveUsers].Text
	if active == "" {
		active = "-"
	}
	lines = append(lines, "[yellow]pulseboard[-]  Active users: [green]"+active+"[-]")

	cards := make([]string, 0, len(analytics.MetricIDs))
	for _, id := range analytics.MetricIDs {
		value := elems[render.ValueSlot(id)].Text
		if value == "" {
			value = "-"
		}
		change := elems[render.ChangeSlot(id)]
		color := "white"
		switch {
		case change.HasClass(string(analytics.PolarityPositive)):
			color = "green"
		case change.HasClass(string(analytics.PolarityNegative)):
			color = "red"
		}
		cards = append(cards, fmt.Sprintf("%s %s [%s]%s[-]", metricShortLabel(id), value, color, change.Text))
	}
	lines = append(lines, strings.Join(cards, "  |  "), "")

	lines = append(lines, "---- Traffic ----", chartLine(elems[render.SlotChart], c.width))
	lines = append(lines, "[blue]"+ui.ProgressText(c.progress, c.width)+"[-]", "")

	for _, id := range c.reports {
		lines = append(lines, "---- "+render.ReportTitle(id)+" ----")
		content := elems[render.ReportSlot(id)].Content
		if content == "" {
			content = render.NoDataMarkup
		}
		rows := strings.Split(content, "\n")
		if len(rows) > ansiReportRows {
			rows = append(rows[:ansiReportRows], fmt.Sprintf("[gray]... +%d more[-]", len(rows)-ansiReportRows))
		}
		lines = append(lines, rows...)
	}

	c.mu.Lock()
	stats := append([]string(nil), c.stats...)
	system := snapshotPane(&c.system)
	c.mu.Unlock()

	lines = append(lines, "", "---- Poll Status ----")
	lines = append(lines, stats...)
	lines = append(lines, "---- System ----")
	lines = append(lines, system...)
	return lines
}

func metricShortLabel(id string) string {
	switch id {
	case analytics.MetricPageViews:
		return "Views"
	case analytics.MetricVisitors:
		return "Visitors"
	case analytics.MetricBounceRate:
		return "Bounce"
	case analytics.MetricAvgSessionDuration:
		return "Session"
	}
	return id
}

// chartLine renders the chart element as a one-line sparkline of its first
// series, or the element's placeholder state.
func chartLine(e render.Element, width int) string {
	switch {
	case e.Series == nil:
		return "[gray]chart not initialized[-]"
	case len(e.Series) == 0 || len(e.Series[0].Data) == 0:
		return "[gray]" + e.NoData + "[-]"
	}
	values := make([]float64, len(e.Series[0].Data))
	for i, p := range e.Series[0].Data {
		values[i] = p.Value
	}
	return "[blue]" + sparkline(values, width) + "[-]"
}

// sparkline buckets values into at most width columns, keeping each bucket's
// maximum so spikes survive.
func sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	cols := len(values)
	if cols > width {
		cols = width
	}
	buckets := make([]float64, cols)
	for i := range buckets {
		buckets[i] = math.Inf(-1)
	}
	for i, v := range values {
		b := i * cols / len(values)
		buckets[b] = math.Max(buckets[b], v)
	}
	max := 0.0
	for _, v := range buckets {
		max = math.Max(max, v)
	}
	var b strings.Builder
	for _, v := range buckets {
		idx := 0
		if max > 0 && v > 0 {
			idx = int(math.Round(v / max * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

func snapshotPane(p *ringPane) []string {
	if p == nil || len(p.lines) == 0 || p.count == 0 {
		return nil
	}
	start := p.idx - p.count
	if start < 0 {
		start += len(p.lines)
	}
	out := make([]string, p.count)
	for i := range out {
		out[i] = p.lines[(start+i)%len(p.lines)]
	}
	return out
}

// formatLine strips control characters, converts or strips markup, and pads
// or truncates the visible text to width cells.
func formatLine(line string, width int, color bool) string {
	line = strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n':
			return -1
		case '\t':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, line)
	visible := ansiStripReplacer.Replace(line)
	w := runewidth.StringWidth(visible)
	if w > width {
		// Truncated lines drop their colors.
		return runewidth.Truncate(visible, width, "…")
	}
	pad := strings.Repeat(" ", width-w)
	if !color {
		return visible + pad
	}
	return applyANSIMarkup(line, true) + pad
}

type ansiWriter struct {
	append func(string)
	buf    []byte
	mu     sync.Mutex
}

// Purpose: io.Writer feeding log lines into the system pane.
// Key aspects: Buffers partial lines and bounds the buffer.
// Upstream: logFanout console sink in ANSI mode.
// Downstream: ansiConsole.AppendSystem.
func (w *ansiWriter) Write(p []byte) (int, error) {
	if w == nil || w.append == nil {
		return len(p), nil
	}
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	var lines []string
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}
		lines = append(lines, strings.TrimRight(string(w.buf[:idx]), "\r"))
		w.buf = w.buf[idx+1:]
	}
	const maxWriterBufferSize = 16 * 1024
	if len(w.buf) > maxWriterBufferSize {
		if rest := strings.TrimRight(string(w.buf), "\r"); rest != "" {
			lines = append(lines, rest)
		}
		w.buf = w.buf[:0]
	}
	w.mu.Unlock()
	for _, line := range lines {
		w.append(line)
	}
	return len(p), nil
}

// applyANSIMarkup converts tview color tags to ANSI escapes, or strips them.
func applyANSIMarkup(line string, enableColor bool) string {
	if line == "" {
		return line
	}
	if !enableColor {
		return ansiStripReplacer.Replace(line)
	}
	hasMarkup := strings.Contains(line, "[")
	line = ansiColorReplacer.Replace(line)
	if hasMarkup {
		line += resetANSI
	}
	return line
}

const resetANSI = "\x1b[0m"

// Escaped brackets ("[x[]") unescape to "[x]".
var ansiColorReplacer = strings.NewReplacer(
	"[red]", "\x1b[31m",
	"[green]", "\x1b[32m",
	"[yellow]", "\x1b[33m",
	"[blue]", "\x1b[34m",
	"[magenta]", "\x1b[35m",
	"[cyan]", "\x1b[36m",
	"[white]", "\x1b[37m",
	"[gray]", "\x1b[90m",
	"[-]", resetANSI,
	"[]", "]",
)

var ansiStripReplacer = strings.NewReplacer(
	"[red]", "",
	"[green]", "",
	"[yellow]", "",
	"[blue]", "",
	"[magenta]", "",
	"[cyan]", "",
	"[white]", "",
	"[gray]", "",
	"[-]", "",
	"[]", "]",
)
