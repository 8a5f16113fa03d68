package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a Tracker as Prometheus metrics. Values are read at scrape
// time, so the poll path never touches Prometheus types.
type Collector struct {
	tracker  *Tracker
	ticks    *prometheus.Desc
	outcomes *prometheus.Desc
	repeats  *prometheus.Desc
	latency  *prometheus.Desc
	lastOK   *prometheus.Desc
}

// NewCollector builds a collector for tracker under namespace.
func NewCollector(namespace string, tracker *Tracker) *Collector {
	return &Collector{
		tracker: tracker,
		ticks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "poll", "ticks_total"),
			"Refresh timer ticks fired.", nil, nil),
		outcomes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "poll", "outcomes_total"),
			"Resolved ticks by outcome.", []string{"outcome"}, nil),
		repeats: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "poll", "repeat_payloads_total"),
			"Successful payloads identical to the previous one.", nil, nil),
		latency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "poll", "fetch_latency_seconds"),
			"Fetch latency percentiles over the recent window.", []string{"quantile"}, nil),
		lastOK: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "poll", "last_success_timestamp_seconds"),
			"Unix time of the last applied snapshot.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticks
	ch <- c.outcomes
	ch <- c.repeats
	ch <- c.latency
	ch <- c.lastOK
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	t := c.tracker
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(t.Ticks()))
	for _, outcome := range Outcomes {
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(t.Count(outcome)), string(outcome))
	}
	ch <- prometheus.MustNewConstMetric(c.repeats, prometheus.CounterValue, float64(t.Repeats()))
	lat := t.Latency()
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, lat.P50.Seconds(), "0.5")
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, lat.P99.Seconds(), "0.99")
	last := 0.0
	if ts := t.LastSuccess(); !ts.IsZero() {
		last = float64(ts.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(c.lastOK, prometheus.GaugeValue, last)
}
