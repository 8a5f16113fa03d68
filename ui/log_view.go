package ui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// logView is a bounded scroll view for the system log page. It keeps a ring
// of lines and draws only the visible rows. Append/Reset may be called from
// any goroutine; Draw and HandleScroll run on the UI goroutine.
type logView struct {
	*tview.Box

	mu    sync.Mutex
	lines []string
	head  int
	count int
	total uint64

	offset int
	follow bool
	title  string
}

func newLogView(title string, max int) *logView {
	if max <= 0 {
		max = 1
	}
	v := &logView{
		Box:    tview.NewBox().SetBorder(true),
		lines:  make([]string, max),
		follow: true,
		title:  title,
	}
	v.SetTitleAlign(tview.AlignLeft)
	v.SetTitleColor(uiTitleColor)
	applyFocusStyle(v.Box, title, false)
	return v
}

func (v *logView) Primitive() tview.Primitive { return v }

func (v *logView) SetFocused(focused bool) {
	applyFocusStyle(v.Box, v.title, focused)
}

func (v *logView) Append(line string) {
	v.mu.Lock()
	max := len(v.lines)
	if v.count < max {
		v.lines[(v.head+v.count)%max] = line
		v.count++
	} else {
		v.lines[v.head] = line
		v.head = (v.head + 1) % max
	}
	v.total++
	v.mu.Unlock()
}

// Reset clears the view and keeps at most the newest len(ring) lines.
func (v *logView) Reset(lines []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.lines {
		v.lines[i] = ""
	}
	v.head, v.count, v.total, v.offset = 0, 0, 0, 0
	v.follow = true
	if len(lines) > len(v.lines) {
		lines = lines[len(lines)-len(v.lines):]
	}
	for _, line := range lines {
		v.lines[v.count] = line
		v.count++
		v.total++
	}
}

func (v *logView) Draw(screen tcell.Screen) {
	v.Box.DrawForSubclass(screen, v)
	x, y, width, height := v.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}
	v.mu.Lock()
	rows := v.visibleRowsLocked(height)
	v.mu.Unlock()
	for i, row := range rows {
		tview.Print(screen, " "+logLineMarkup(row), x, y+i, width, tview.AlignLeft, tcell.ColorWhite)
	}
}

// logLineMarkup escapes a raw log line and tints failures red.
func logLineMarkup(line string) string {
	escaped := tview.Escape(line)
	lower := strings.ToLower(line)
	if strings.Contains(lower, "error") || strings.Contains(lower, "failed") || strings.Contains(lower, "dropped") {
		return "[red]" + escaped + "[-]"
	}
	return escaped
}

func (v *logView) HandleScroll(event *tcell.EventKey) bool {
	if event == nil {
		return false
	}
	_, _, _, height := v.GetInnerRect()
	if height < 1 {
		height = 1
	}
	page := height - 1
	if page < 1 {
		page = 1
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	maxOffset := v.totalRowsLocked() - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	next := v.offset
	switch event.Key() {
	case tcell.KeyUp:
		next--
	case tcell.KeyDown:
		next++
	case tcell.KeyPgUp:
		next -= page
	case tcell.KeyPgDn:
		next += page
	case tcell.KeyHome:
		next = 0
	case tcell.KeyEnd:
		next = maxOffset
	case tcell.KeyRune:
		switch event.Rune() {
		case 'k':
			next--
		case 'j':
			next++
		default:
			return false
		}
	default:
		return false
	}
	if next < 0 {
		next = 0
	}
	if next > maxOffset {
		next = maxOffset
	}
	v.offset = next
	v.follow = next == maxOffset
	return true
}

// SnapshotText returns every retained line plus the overflow marker.
func (v *logView) SnapshotText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	total := v.totalRowsLocked()
	rows := make([]string, 0, total)
	for i := 0; i < total; i++ {
		rows = append(rows, v.rowLocked(i))
	}
	return strings.Join(rows, "\n")
}

func (v *logView) totalRowsLocked() int {
	if int(v.total) > v.count {
		return v.count + 1
	}
	return v.count
}

// rowLocked returns row i; the row after the ring is the overflow marker.
func (v *logView) rowLocked(i int) string {
	if i < v.count {
		return v.lines[(v.head+i)%len(v.lines)]
	}
	return "... +" + strconv.FormatUint(v.total-uint64(v.count), 10) + " more"
}

func (v *logView) visibleRowsLocked(height int) []string {
	totalRows := v.totalRowsLocked()
	maxOffset := totalRows - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if v.follow || v.offset > maxOffset {
		v.offset = maxOffset
	}
	end := v.offset + height
	if end > totalRows {
		end = totalRows
	}
	rows := make([]string, 0, end-v.offset)
	for i := v.offset; i < end; i++ {
		rows = append(rows, v.rowLocked(i))
	}
	return rows
}
