package serialmux

import "github.com/prometheus/client_golang/prometheus"

// StatsSource is satisfied by SerialMux and DisabledSerialMux.
type StatsSource interface {
	Stats() Stats
}

// Collector exports fan-out counters. Framer counters are exported
// separately by thinkgear.Collector.
type Collector struct {
	src         StatsSource
	samples     *prometheus.Desc
	dropped     *prometheus.Desc
	subscribers *prometheus.Desc
}

func NewCollector(src StatsSource, constLabels prometheus.Labels) *Collector {
	return &Collector{
		src: src,
		samples: prometheus.NewDesc("eeg_serialmux_samples_total",
			"Decoded samples published to subscribers", nil, constLabels),
		dropped: prometheus.NewDesc("eeg_serialmux_dropped_total",
			"Sample deliveries skipped because a subscriber channel was full", nil, constLabels),
		subscribers: prometheus.NewDesc("eeg_serialmux_subscribers",
			"Current number of subscribers", nil, constLabels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.samples
	ch <- c.dropped
	ch <- c.subscribers
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.samples, prometheus.CounterValue, float64(s.Samples))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(s.Subscribers))
}
