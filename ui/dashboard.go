package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"pulseboard/analytics"
	"pulseboard/chart"
	"pulseboard/clock"
	"pulseboard/config"
	"pulseboard/render"
)

const paneWriterMaxBytes = 64 * 1024

var metricLabels = map[string]string{
	analytics.MetricPageViews:          "Page Views",
	analytics.MetricVisitors:           "Visitors",
	analytics.MetricBounceRate:         "Bounce Rate",
	analytics.MetricAvgSessionDuration: "Avg. Session",
}

// Action is one entry of the settings page action list. Run is invoked on its
// own goroutine so it may block on dialogs.
type Action struct {
	Label       string
	Description string
	Shortcut    rune
	Run         func(ctx context.Context)
}

// Dashboard is the page-based tview surface. Renderer writes land in an
// in-memory render.Document; every changed element is repainted on the next
// frame by the scheduler.
type Dashboard struct {
	app       *tview.Application
	pages     *tview.Pages
	scheduler *frameScheduler
	doc       *render.Document
	progress  *ProgressModel
	metrics   *Metrics

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	ready    chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	header      *tview.TextView
	status      *tview.TextView
	cards       map[string]*tview.TextView
	chartSlot   *tview.Flex
	chartEmpty  *tview.TextView
	liveChart   *areaChart
	progressBar *progressBar
	overview    *tview.Flex

	reportIDs   []string
	reportViews map[string]*tview.TextView
	reportFocus focusGroup
	reportsRoot *tview.Flex

	settingsView *tview.TextView
	actionList   *tview.List
	settingsRoot *tview.Flex

	logView *logView

	pageOrder   []string
	pageIndex   int
	pagePresent map[string]bool
	helpShown   bool
	onPage      atomic.Value // func(string)

	dialogMu     sync.Mutex
	dialogActive atomic.Bool
	loadingShown atomic.Bool
}

// NewDashboard builds the dashboard. It does not touch the terminal until Run.
func NewDashboard(cfg config.UIConfig, clk clock.Clock) *Dashboard {
	app := tview.NewApplication().EnableMouse(cfg.EnableMouse)
	return newDashboard(cfg, app, clk)
}

// newDashboard with a nil app builds a detached dashboard whose scheduler
// runs repaint batches inline.
func newDashboard(cfg config.UIConfig, app *tview.Application, clk clock.Clock) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	metrics := NewMetrics()
	d := &Dashboard{
		app:         app,
		pages:       tview.NewPages(),
		doc:         render.NewDocument(),
		progress:    NewProgressModel(clk),
		metrics:     metrics,
		ctx:         ctx,
		cancel:      cancel,
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		cards:       make(map[string]*tview.TextView),
		reportViews: make(map[string]*tview.TextView),
		pagePresent: make(map[string]bool),
		pageOrder:   append([]string(nil), cfg.Pages...),
		reportIDs:   append([]string(nil), cfg.Reports...),
	}
	if len(d.pageOrder) == 0 {
		d.pageOrder = append([]string(nil), config.KnownPages...)
	}
	if len(d.reportIDs) == 0 {
		d.reportIDs = append([]string(nil), analytics.ReportIDs...)
	}
	d.scheduler = newFrameScheduler(app, cfg.TargetFPS, 100*time.Millisecond, metrics.ObserveRender)

	d.buildOverview()
	d.buildReports()
	d.buildSettings()
	d.logView = newLogView("System Log", cfg.LogLines)

	d.addPage(config.PageOverview, d.overview, true, false)
	d.addPage(config.PageReports, d.reportsRoot, true, false)
	d.addPage(config.PageSettings, d.settingsRoot, true, false)
	d.addPage(config.PageLog, d.logView, true, false)
	d.pages.AddPage("help", buildHelpOverlay(), true, false)

	d.doc.OnChange(func(id string) {
		d.scheduler.Schedule(id, func() { d.paint(id) })
	})

	if app != nil {
		var once sync.Once
		app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
			once.Do(func() { close(d.ready) })
			return false
		})
		d.installKeybindings()
		root := tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(d.pages, 0, 1, true).
			AddItem(buildFooter(), 1, 0, false)
		app.SetRoot(root, true)
	}
	d.showFirstAvailablePage()
	return d
}

// Run starts the event loop and the repaint machinery. Done closes when the
// event loop exits.
func (d *Dashboard) Run() {
	d.scheduler.Start()
	d.wg.Add(1)
	go d.animate()
	go func() {
		defer close(d.done)
		if d.app == nil {
			<-d.ctx.Done()
			return
		}
		if err := d.app.Run(); err != nil {
			log.Printf("UI: tview error: %v", err)
		}
		d.cancel()
	}()
}

// animate keeps frames coming while the progress bar moves.
func (d *Dashboard) animate() {
	defer d.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if d.progress.Animating() {
				d.scheduler.Schedule("progress", func() {})
			}
		}
	}
}

func (d *Dashboard) buildOverview() {
	d.header = newBoxedTextView("Overview")
	d.header.SetText(formatHeader("-"))
	d.status = newBoxedTextView("Poll Status")
	d.status.SetText("[gray]waiting for first poll[-]")

	cardsRow := tview.NewFlex()
	for _, id := range analytics.MetricIDs {
		card := newBoxedTextView(metricLabels[id])
		card.SetText("[gray]-[-]")
		d.cards[id] = card
		cardsRow.AddItem(card, 0, 1, false)
	}

	d.chartEmpty = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
	d.chartEmpty.SetText("[gray]chart not initialized[-]")
	d.chartSlot = tview.NewFlex().AddItem(d.chartEmpty, 0, 1, false)
	d.chartSlot.SetBorder(true).SetTitle(accentText("Traffic")).SetTitleAlign(tview.AlignLeft)
	d.chartSlot.SetBorderColor(uiBorderColor)

	d.progressBar = newProgressBar(d.progress)

	d.overview = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.header, 3, 0, false).
		AddItem(cardsRow, 4, 0, false).
		AddItem(d.chartSlot, 0, 1, false).
		AddItem(d.progressBar, 1, 0, false).
		AddItem(d.status, 4, 0, false)
}

func (d *Dashboard) buildReports() {
	grid := tview.NewGrid().SetColumns(0, 0, 0)
	items := make([]focusable, 0, len(d.reportIDs))
	rows := (len(d.reportIDs) + 2) / 3
	rowSpec := make([]int, rows)
	grid.SetRows(rowSpec...)
	for i, id := range d.reportIDs {
		title := render.ReportTitle(id)
		tv := newBoxedTextView(title)
		tv.SetScrollable(true)
		tv.SetText(render.NoDataMarkup)
		d.reportViews[id] = tv
		items = append(items, newFocusBox(tv, title))
		grid.AddItem(tv, i/3, i%3, 1, 1, 0, 0, false)
	}
	d.reportFocus = newFocusGroup(items...)
	d.reportsRoot = tview.NewFlex().SetDirection(tview.FlexRow).AddItem(grid, 0, 1, false)
}

func (d *Dashboard) buildSettings() {
	d.settingsView = newBoxedTextView("Settings")
	d.actionList = tview.NewList().ShowSecondaryText(true)
	d.actionList.SetBorder(true).SetTitle(accentText("Actions")).SetTitleAlign(tview.AlignLeft)
	d.actionList.SetBorderColor(uiBorderColor)
	d.settingsRoot = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.settingsView, 0, 1, false).
		AddItem(d.actionList, 0, 1, true)
}

// View returns the render target backed by the dashboard document.
func (d *Dashboard) View() render.View { return d.doc }

// Document exposes the rendered state.
func (d *Dashboard) Document() *render.Document { return d.doc }

func (d *Dashboard) SetText(id, text string) { d.doc.SetText(id, text) }

func (d *Dashboard) SwapClass(id, add string, remove ...string) {
	d.doc.SwapClass(id, add, remove...)
}

func (d *Dashboard) ReplaceContent(id, markup string) { d.doc.ReplaceContent(id, markup) }

// paint copies one document element into its widget. UI goroutine only.
func (d *Dashboard) paint(id string) {
	if id == render.SlotActiveUsers {
		e, _ := d.doc.Element(id)
		d.header.SetText(formatHeader(e.Text))
		return
	}
	if reportID, ok := strings.CutPrefix(id, "report."); ok {
		if tv := d.reportViews[reportID]; tv != nil {
			e, _ := d.doc.Element(id)
			tv.SetText(e.Content)
			tv.ScrollToBeginning()
		}
		return
	}
	metricID := id
	if i := strings.LastIndexByte(id, '.'); i > 0 {
		metricID = id[:i]
	}
	card := d.cards[metricID]
	if card == nil {
		return
	}
	value, _ := d.doc.Element(render.ValueSlot(metricID))
	change, _ := d.doc.Element(render.ChangeSlot(metricID))
	card.SetText(formatCard(value, change))
}

func formatHeader(activeUsers string) string {
	return fmt.Sprintf(" Active users: [green]%s[-]", tview.Escape(activeUsers))
}

func formatCard(value, change render.Element) string {
	text := value.Text
	if text == "" {
		text = "-"
	}
	color := "gray"
	switch {
	case change.HasClass(string(analytics.PolarityPositive)):
		color = "green"
	case change.HasClass(string(analytics.PolarityNegative)):
		color = "red"
	}
	return fmt.Sprintf(" [white]%s[-]\n [%s]%s[-]", tview.Escape(text), color, tview.Escape(change.Text))
}

// ChartFactory builds area charts mounted into the overview chart slot.
func (d *Dashboard) ChartFactory() chart.Factory {
	return func(container string, opts chart.Options) (chart.Instance, error) {
		if container != render.SlotChart {
			return nil, fmt.Errorf("ui: unknown chart container %q", container)
		}
		var c *areaChart
		c = newAreaChart(opts,
			func() { d.scheduler.Schedule("chart.draw", func() {}) },
			func() { d.scheduler.Schedule("chart.mount", func() { d.unmountChart(c) }) },
		)
		d.scheduler.Schedule("chart.mount", func() { d.mountChart(c) })
		return c, nil
	}
}

func (d *Dashboard) mountChart(c *areaChart) {
	d.chartSlot.Clear()
	d.chartSlot.AddItem(c, 0, 1, false)
	d.liveChart = c
}

func (d *Dashboard) unmountChart(c *areaChart) {
	if d.liveChart != c {
		return
	}
	d.chartSlot.Clear()
	d.chartSlot.AddItem(d.chartEmpty, 0, 1, false)
	d.liveChart = nil
}

// Restart implements poller.Progress.
func (d *Dashboard) Restart(interval time.Duration) {
	d.progress.Restart(interval)
	d.scheduler.Schedule("progress", func() {})
}

// Progress exposes the progress model driving the bar.
func (d *Dashboard) Progress() *ProgressModel { return d.progress }

func (d *Dashboard) Metrics() *Metrics { return d.metrics }

func (d *Dashboard) SetStats(lines []string) {
	text := strings.Join(lines, "\n")
	d.scheduler.Schedule("stats", func() { d.status.SetText(text) })
}

// SetSettings replaces the settings page summary.
func (d *Dashboard) SetSettings(lines []string) {
	text := strings.Join(lines, "\n")
	d.scheduler.Schedule("settings", func() { d.settingsView.SetText(text) })
}

// SetActions replaces the settings page action list.
func (d *Dashboard) SetActions(actions []Action) {
	actions = append([]Action(nil), actions...)
	d.scheduler.Schedule("actions", func() {
		d.actionList.Clear()
		for _, a := range actions {
			a := a
			d.actionList.AddItem(a.Label, a.Description, a.Shortcut, func() {
				if a.Run == nil {
					return
				}
				d.wg.Add(1)
				go func() {
					defer d.wg.Done()
					a.Run(d.ctx)
				}()
			})
		}
	})
}

// OnPageChange registers fn to be called with the page name on every switch.
func (d *Dashboard) OnPageChange(fn func(page string)) {
	d.onPage.Store(fn)
}

// ShowPage switches pages on the next frame.
func (d *Dashboard) ShowPage(name string) {
	d.scheduler.Schedule("page", func() { d.showPage(name) })
}

// CurrentPage returns the front page name.
func (d *Dashboard) CurrentPage() string {
	if d.pageIndex < 0 || d.pageIndex >= len(d.pageOrder) {
		return ""
	}
	return d.pageOrder[d.pageIndex]
}

func (d *Dashboard) AppendSystem(line string) {
	d.logView.Append(line)
	d.scheduler.Schedule("log", func() {})
}

func (d *Dashboard) SystemWriter() io.Writer {
	return &paneWriter{dash: d}
}

func (d *Dashboard) WaitReady() {
	if d.app == nil {
		return
	}
	select {
	case <-d.ready:
	case <-d.done:
	}
}

// Done closes once the event loop has exited.
func (d *Dashboard) Done() <-chan struct{} { return d.done }

func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		d.scheduler.Stop()
		waited := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(200 * time.Millisecond):
			log.Printf("UI: dashboard stop timeout, some goroutines may leak")
		}
		if d.app != nil {
			d.app.Stop()
		}
	})
}

func (d *Dashboard) installKeybindings() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			go d.Stop()
			return nil
		}
		if d.loadingShown.Load() {
			return nil
		}
		if d.dialogActive.Load() {
			return event
		}
		if d.helpShown {
			if event.Key() == tcell.KeyEsc || event.Key() == tcell.KeyF1 || event.Rune() == '?' {
				d.toggleHelp(false)
				return nil
			}
		}

		page := d.CurrentPage()
		if page == config.PageReports && d.reportFocus.handleScroll(event) {
			return nil
		}
		if page == config.PageLog && d.logView.HandleScroll(event) {
			return nil
		}

		switch event.Key() {
		case tcell.KeyF1:
			d.toggleHelp(!d.helpShown)
			return nil
		case tcell.KeyF2:
			d.showPage(config.PageOverview)
			return nil
		case tcell.KeyF3:
			d.showPage(config.PageReports)
			return nil
		case tcell.KeyF4:
			d.showPage(config.PageSettings)
			return nil
		case tcell.KeyF5:
			d.showPage(config.PageLog)
			return nil
		case tcell.KeyTab:
			if page == config.PageReports {
				d.reportFocus.cycle(d.app, 1)
			} else {
				d.cyclePage(1)
			}
			return nil
		case tcell.KeyBacktab:
			if page == config.PageReports {
				d.reportFocus.cycle(d.app, -1)
			} else {
				d.cyclePage(-1)
			}
			return nil
		}

		switch event.Rune() {
		case 'q', 'Q':
			go d.Stop()
			return nil
		case '?':
			d.toggleHelp(!d.helpShown)
			return nil
		}
		return event
	})
}

func (d *Dashboard) toggleHelp(show bool) {
	d.helpShown = show
	if show {
		d.pages.ShowPage("help")
		d.pages.SendToFront("help")
		return
	}
	d.pages.HidePage("help")
}

func (d *Dashboard) showPage(name string) {
	if !d.pagePresent[name] {
		return
	}
	idx := -1
	for i, page := range d.pageOrder {
		if page == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	d.pageIndex = idx
	d.pages.SwitchToPage(name)
	d.metrics.PageSwitch()
	switch name {
	case config.PageReports:
		d.reportFocus.set(d.app, d.reportFocus.index)
	case config.PageSettings:
		d.setFocus(d.actionList)
	case config.PageLog:
		d.setFocus(d.logView)
	default:
		d.setFocus(d.overview)
	}
	if fn, ok := d.onPage.Load().(func(string)); ok && fn != nil {
		fn(name)
	}
}

func (d *Dashboard) setFocus(p tview.Primitive) {
	if d.app != nil {
		d.app.SetFocus(p)
	}
}

func (d *Dashboard) showFirstAvailablePage() {
	for _, name := range d.pageOrder {
		if d.pagePresent[name] {
			d.showPage(name)
			return
		}
	}
}

func (d *Dashboard) addPage(name string, page tview.Primitive, resize, visible bool) {
	d.pages.AddPage(name, page, resize, visible)
	d.pagePresent[name] = true
}

func (d *Dashboard) cyclePage(delta int) {
	if len(d.pageOrder) == 0 {
		return
	}
	idx := d.pageIndex
	for range d.pageOrder {
		idx += delta
		if idx < 0 {
			idx = len(d.pageOrder) - 1
		} else if idx >= len(d.pageOrder) {
			idx = 0
		}
		if name := d.pageOrder[idx]; d.pagePresent[name] {
			d.showPage(name)
			return
		}
	}
}

type paneWriter struct {
	dash *Dashboard
	// buf holds a partial line, bounded when no newline arrives.
	buf          []byte
	mu           sync.Mutex
	droppedBytes uint64
	lastDropLog  time.Time
}

func (w *paneWriter) Write(p []byte) (int, error) {
	if w == nil || w.dash == nil {
		return len(p), nil
	}
	var logDrop bool
	var dropBytes, totalDropped uint64
	now := time.Now().UTC()

	w.mu.Lock()
	w.buf = append(w.buf, p...)
	if excess := len(w.buf) - paneWriterMaxBytes; excess > 0 {
		w.buf = w.buf[excess:]
		w.droppedBytes += uint64(excess)
		dropBytes, totalDropped = uint64(excess), w.droppedBytes
		if w.lastDropLog.IsZero() || now.Sub(w.lastDropLog) >= 30*time.Second {
			w.lastDropLog = now
			logDrop = true
		}
	}
	var lines []string
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(w.buf[:idx], "\r")))
		w.buf = w.buf[idx+1:]
	}
	w.mu.Unlock()

	if logDrop {
		w.dash.AppendSystem(fmt.Sprintf("UI: paneWriter dropped %d bytes (total %d) due to missing newline", dropBytes, totalDropped))
	}
	for _, line := range lines {
		w.dash.AppendSystem(line)
	}
	return len(p), nil
}

func buildFooter() *tview.TextView {
	return tview.NewTextView().SetDynamicColors(true).SetText(
		accentText("F1") + "Help  " + accentText("F2") + "Overview  " + accentText("F3") + "Reports  " +
			accentText("F4") + "Settings  " + accentText("F5") + "Log  [Q]Quit",
	)
}

func buildHelpOverlay() tview.Primitive {
	help := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	help.SetText(strings.TrimSpace(fmt.Sprintf(`
KEYBOARD HELP

NAVIGATION
  %sF1%s Help   %sF2%s Overview   %sF3%s Reports
  %sF4%s Settings   %sF5%s Log
  Tab Next page / panel   Shift+Tab Previous   q / Ctrl+C Quit

REPORTS/LOG
  ↑/↓ or k/j Scroll   PageUp/Down Fast scroll   Home/End Top/Bottom

SETTINGS
  Enter Run the selected action
`, accentTag, accentReset, accentTag, accentReset, accentTag, accentReset, accentTag, accentReset, accentTag, accentReset)))
	help.SetBorder(true).SetTitle("Help")
	help.SetBorderColor(uiBorderColor)
	help.SetTitleColor(uiTitleColor)
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(help, 15, 1, true).
			AddItem(nil, 0, 1, false),
			64, 1, true).
		AddItem(nil, 0, 1, false)
}
