package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var (
	uiBorderColor  = tcell.ColorGray
	uiTitleColor   = tcell.ColorHotPink
	uiFocusedColor = tcell.ColorHotPink
)

const (
	accentTag   = "[#ff69b4]"
	accentReset = "[-]"
)

// focusable is a pane that can take focus and optionally scroll.
type focusable interface {
	Primitive() tview.Primitive
	SetFocused(focused bool)
	HandleScroll(event *tcell.EventKey) bool
}

// focusBox wraps a boxed TextView, e.g. one report panel.
type focusBox struct {
	tv        *tview.TextView
	baseTitle string
}

func newFocusBox(tv *tview.TextView, baseTitle string) *focusBox {
	return &focusBox{tv: tv, baseTitle: baseTitle}
}

func (b *focusBox) Primitive() tview.Primitive {
	if b == nil {
		return nil
	}
	return b.tv
}

func (b *focusBox) SetFocused(focused bool) {
	if b == nil {
		return
	}
	applyFocusStyle(b.tv.Box, b.baseTitle, focused)
}

func (b *focusBox) HandleScroll(event *tcell.EventKey) bool {
	if b == nil {
		return false
	}
	return scrollTextView(b.tv, event)
}

// focusGroup cycles focus across a page's panes.
type focusGroup struct {
	items []focusable
	index int
}

func newFocusGroup(items ...focusable) focusGroup {
	filtered := make([]focusable, 0, len(items))
	for _, item := range items {
		if item == nil || item.Primitive() == nil {
			continue
		}
		filtered = append(filtered, item)
	}
	return focusGroup{items: filtered}
}

func (g *focusGroup) set(app *tview.Application, idx int) {
	if g == nil || len(g.items) == 0 {
		return
	}
	if idx < 0 || idx >= len(g.items) {
		idx = 0
	}
	g.index = idx
	for i, item := range g.items {
		item.SetFocused(i == idx)
	}
	if app != nil {
		app.SetFocus(g.items[idx].Primitive())
	}
}

func (g *focusGroup) cycle(app *tview.Application, delta int) {
	if g == nil || len(g.items) == 0 {
		return
	}
	next := g.index + delta
	if next < 0 {
		next = len(g.items) - 1
	} else if next >= len(g.items) {
		next = 0
	}
	g.set(app, next)
}

// handleScroll forwards event to the focused pane.
func (g *focusGroup) handleScroll(event *tcell.EventKey) bool {
	if g == nil || event == nil || len(g.items) == 0 {
		return false
	}
	return g.items[g.index].HandleScroll(event)
}

func applyFocusStyle(box *tview.Box, baseTitle string, focused bool) {
	if box == nil {
		return
	}
	if focused {
		box.SetBorderColor(uiFocusedColor)
		box.SetTitle(accentText("▶ " + baseTitle))
		return
	}
	box.SetBorderColor(uiBorderColor)
	box.SetTitle(accentText(baseTitle))
}

func scrollTextView(target *tview.TextView, event *tcell.EventKey) bool {
	if target == nil || event == nil {
		return false
	}
	row, col := target.GetScrollOffset()
	page := 10
	_, _, _, height := target.GetInnerRect()
	if height > 1 {
		page = height - 1
	}
	switch event.Key() {
	case tcell.KeyUp:
		if row > 0 {
			row--
		}
	case tcell.KeyDown:
		row++
	case tcell.KeyPgUp:
		row -= page
		if row < 0 {
			row = 0
		}
	case tcell.KeyPgDn:
		row += page
	case tcell.KeyHome:
		row = 0
	case tcell.KeyEnd:
		row = 1 << 30
	default:
		return false
	}
	target.ScrollTo(row, col)
	return true
}

func newBoxedTextView(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	tv.SetBorder(true)
	if title != "" {
		tv.SetTitle(accentText(title)).SetTitleAlign(tview.AlignLeft)
	}
	tv.SetBorderColor(uiBorderColor)
	tv.SetTitleColor(uiTitleColor)
	return tv
}

func accentText(text string) string {
	if text == "" {
		return ""
	}
	return accentTag + text + accentReset
}
