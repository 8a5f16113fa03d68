package ui

import (
	"io"
	"time"

	"pulseboard/chart"
	"pulseboard/render"
)

// Surface abstracts the console UI so alternative renderers can plug in.
// Implementations must be safe for concurrent calls from the poller and the
// stats loop.
type Surface interface {
	render.View
	ChartFactory() chart.Factory
	// Restart implements poller.Progress.
	Restart(interval time.Duration)
	SetStats(lines []string)
	AppendSystem(line string)
	SystemWriter() io.Writer
	WaitReady()
	Stop()
	Done() <-chan struct{}
}

var (
	_ Surface = (*Dashboard)(nil)
	_ Dialogs = (*Dashboard)(nil)
)
