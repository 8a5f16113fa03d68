// Package render applies analytics snapshots to a view. Each field group
// (active users, one metric card, one report panel, the chart) is a full
// overwrite, so applying the same snapshot twice leaves the same state.
package render

// View is the mutable surface the renderer writes into. Implementations must
// make each call atomic with respect to other calls.
type View interface {
	SetText(id, text string)
	// SwapClass removes every class in remove, then adds add once.
	SwapClass(id, add string, remove ...string)
	// ReplaceContent replaces the element's markup wholesale.
	ReplaceContent(id, markup string)
}

// Slot ids shared by the renderer and the views that lay them out.
const (
	SlotActiveUsers = "activeUsers"
	SlotChart       = "chart"
)

func ValueSlot(metricID string) string  { return metricID + ".value" }
func ChangeSlot(metricID string) string { return metricID + ".change" }
func ReportSlot(reportID string) string { return "report." + reportID }
