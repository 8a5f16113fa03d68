package render

import (
	"sort"
	"sync"

	"pulseboard/analytics"
	"pulseboard/chart"
)

// Element is one addressable region of a Document.
type Element struct {
	Text    string
	Classes []string
	Content string
	// Series holds the chart's visible series for chart containers. An empty
	// non-nil slice means the no-data placeholder is showing.
	Series []analytics.Series
	NoData string
}

// HasClass reports whether class is set on the element.
func (e Element) HasClass(class string) bool {
	for _, c := range e.Classes {
		if c == class {
			return true
		}
	}
	return false
}

func (e Element) clone() Element {
	out := e
	out.Classes = append([]string(nil), e.Classes...)
	out.Series = analytics.CloneSeries(e.Series)
	return out
}

// Document is an in-memory View. The headless and ANSI surfaces render from
// it, and the tview dashboard keeps its state in one.
type Document struct {
	mu       sync.Mutex
	elements map[string]*Element
	revision uint64
	onChange func(id string)
}

func NewDocument() *Document {
	return &Document{elements: make(map[string]*Element)}
}

// OnChange registers a callback invoked after every write, outside the lock.
func (d *Document) OnChange(fn func(id string)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

func (d *Document) mutate(id string, fn func(e *Element)) {
	d.mu.Lock()
	e, ok := d.elements[id]
	if !ok {
		e = &Element{}
		d.elements[id] = e
	}
	fn(e)
	d.revision++
	notify := d.onChange
	d.mu.Unlock()
	if notify != nil {
		notify(id)
	}
}

func (d *Document) SetText(id, text string) {
	d.mutate(id, func(e *Element) { e.Text = text })
}

func (d *Document) SwapClass(id, add string, remove ...string) {
	d.mutate(id, func(e *Element) {
		kept := e.Classes[:0]
		for _, c := range e.Classes {
			if c == add || contains(remove, c) {
				continue
			}
			kept = append(kept, c)
		}
		if add != "" {
			kept = append(kept, add)
		}
		e.Classes = kept
	})
}

func (d *Document) ReplaceContent(id, markup string) {
	d.mutate(id, func(e *Element) { e.Content = markup })
}

// Element returns a copy of the element with id.
func (d *Document) Element(id string) (Element, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.elements[id]
	if !ok {
		return Element{}, false
	}
	return e.clone(), true
}

// Snapshot copies every element.
func (d *Document) Snapshot() map[string]Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]Element, len(d.elements))
	for id, e := range d.elements {
		out[id] = e.clone()
	}
	return out
}

// IDs returns the element ids in sorted order.
func (d *Document) IDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.elements))
	for id := range d.elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Revision increments on every write.
func (d *Document) Revision() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.revision
}

// ChartFactory returns a chart.Factory whose instances store their visible
// series in the container element.
func (d *Document) ChartFactory() chart.Factory {
	return func(container string, opts chart.Options) (chart.Instance, error) {
		d.mutate(container, func(e *Element) {
			e.Series = nil
			e.NoData = opts.NoDataText
		})
		return &documentChart{doc: d, container: container, noData: opts.NoDataText}, nil
	}
}

type documentChart struct {
	doc       *Document
	container string
	noData    string
	disposed  bool
}

func (c *documentChart) UpdateSeries(series []analytics.Series) {
	if c.disposed {
		return
	}
	cloned := analytics.CloneSeries(series)
	if cloned == nil {
		cloned = []analytics.Series{}
	}
	c.doc.mutate(c.container, func(e *Element) { e.Series = cloned })
}

func (c *documentChart) Render() {}

func (c *documentChart) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.doc.mutate(c.container, func(e *Element) {
		e.Series = nil
		e.NoData = ""
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
