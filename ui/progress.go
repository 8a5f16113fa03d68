package ui

import (
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"pulseboard/clock"
)

// ProgressModel tracks the "time until next refresh" fraction.
//
// Restart is two-phase: it snaps the fraction to 1 with transitions off and
// arms an animation. The armed animation only begins on the next Frame call,
// which surfaces make right after drawing the snapped state. A restart during
// an animation therefore never animates backward from the stale position.
type ProgressModel struct {
	mu    sync.Mutex
	clock clock.Clock

	value      float64
	transition bool

	armed    bool
	pending  time.Duration
	start    time.Time
	duration time.Duration
}

func NewProgressModel(clk clock.Clock) *ProgressModel {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ProgressModel{clock: clk}
}

// Restart implements poller.Progress.
func (p *ProgressModel) Restart(interval time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.transition = false
	p.value = 1
	p.duration = 0
	p.armed = true
	p.pending = interval
	p.mu.Unlock()
}

// Frame marks a completed draw. An armed restart starts animating to zero
// over its interval from now.
func (p *ProgressModel) Frame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.armed {
		return
	}
	p.armed = false
	p.transition = true
	p.start = p.clock.Now()
	p.duration = p.pending
	if p.duration <= 0 {
		p.value = 0
		p.transition = false
	}
}

// Current returns the fraction in [0, 1].
func (p *ProgressModel) Current() float64 {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.transition {
		return p.value
	}
	elapsed := p.clock.Now().Sub(p.start)
	if elapsed >= p.duration {
		p.value = 0
		p.transition = false
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	p.value = 1 - float64(elapsed)/float64(p.duration)
	return p.value
}

// Animating reports whether surfaces should keep redrawing: an animation is
// running or a restart awaits its first frame.
func (p *ProgressModel) Animating() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	armed, transition := p.armed, p.transition
	p.mu.Unlock()
	if armed {
		return true
	}
	if !transition {
		return false
	}
	return p.Current() > 0
}

// progressBar draws a ProgressModel as a one-row bar.
type progressBar struct {
	*tview.Box
	model *ProgressModel
	color tcell.Color
}

func newProgressBar(model *ProgressModel) *progressBar {
	return &progressBar{
		Box:   tview.NewBox(),
		model: model,
		color: tcell.NewHexColor(0x3b82f6),
	}
}

func (b *progressBar) Draw(screen tcell.Screen) {
	b.Box.DrawForSubclass(screen, b)
	x, y, width, height := b.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}
	filled := progressCells(b.model.Current(), width)
	on := tcell.StyleDefault.Foreground(b.color)
	off := tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	for col := 0; col < width; col++ {
		if col < filled {
			screen.SetContent(x+col, y, '━', nil, on)
		} else {
			screen.SetContent(x+col, y, '─', nil, off)
		}
	}
	b.model.Frame()
}

// progressCells converts a fraction to a filled cell count.
func progressCells(fraction float64, width int) int {
	if width <= 0 || fraction <= 0 {
		return 0
	}
	if fraction >= 1 {
		return width
	}
	return int(fraction*float64(width) + 0.5)
}

// progressText renders the bar for text surfaces.
func progressText(fraction float64, width int) string {
	filled := progressCells(fraction, width)
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// ProgressText is progressText for the ANSI console.
func ProgressText(model *ProgressModel, width int) string {
	if width <= 0 {
		return ""
	}
	text := progressText(model.Current(), width)
	model.Frame()
	return text
}
