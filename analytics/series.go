package analytics

import (
	"fmt"
	"time"
)

// Series is one named chart line.
type Series struct {
	Name string  `json:"name"`
	Data []Point `json:"data"`
}

// Point is a [timestampMs, value] pair on the wire.
type Point struct {
	Timestamp int64
	Value     float64
}

// Time converts the millisecond timestamp.
func (p Point) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.Timestamp), p.Value})
}

// UnmarshalJSON accepts [t, v] with a null value treated as zero.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("point: expected [timestamp, value], got %d elements", len(raw))
	}
	if raw[0] == nil {
		return fmt.Errorf("point: null timestamp")
	}
	p.Timestamp = int64(*raw[0])
	p.Value = 0
	if raw[1] != nil {
		p.Value = *raw[1]
	}
	return nil
}

// ChartIsEmpty reports whether chart data should show the no-data state: it is
// empty unless some point of the first series is strictly positive. Later
// series are not consulted.
func ChartIsEmpty(series []Series) bool {
	if len(series) == 0 {
		return true
	}
	for _, p := range series[0].Data {
		if p.Value > 0 {
			return false
		}
	}
	return true
}

// CloneSeries deep-copies series so renderers never alias snapshot memory.
func CloneSeries(series []Series) []Series {
	if series == nil {
		return nil
	}
	out := make([]Series, len(series))
	for i, s := range series {
		out[i].Name = s.Name
		if s.Data != nil {
			out[i].Data = append([]Point(nil), s.Data...)
		}
	}
	return out
}
