package thinkgear

import "github.com/prometheus/client_golang/prometheus"

// StatsSource is anything that can report framer counters.
type StatsSource interface {
	Stats() Stats
}

// StatsFunc adapts a function to StatsSource.
type StatsFunc func() Stats

func (f StatsFunc) Stats() Stats { return f() }

// Collector exports framer counters as Prometheus metrics. Values are read
// from the source at scrape time.
type Collector struct {
	src StatsSource

	bytesIn         *prometheus.Desc
	frames          *prometheus.Desc
	desyncBytes     *prometheus.Desc
	malformedLength *prometheus.Desc
	checksumErrors  *prometheus.Desc
	overflows       *prometheus.Desc
}

// NewCollector returns a Collector reading from src. constLabels are
// attached to every metric, e.g. the serial port path.
func NewCollector(src StatsSource, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName("eeg", "framer", name),
			help, variable, constLabels,
		)
	}
	return &Collector{
		src:             src,
		bytesIn:         desc("bytes_total", "Bytes received from the transport"),
		frames:          desc("frames_total", "Frames decoded and emitted", "kind"),
		desyncBytes:     desc("desync_bytes_total", "Bytes dropped while searching for a frame start"),
		malformedLength: desc("malformed_length_total", "Sync markers followed by an unknown discriminator"),
		checksumErrors:  desc("checksum_errors_total", "Complete frames rejected by checksum"),
		overflows:       desc("overflows_total", "Forced resynchronizations after the buffer cap was exceeded"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytesIn
	ch <- c.frames
	ch <- c.desyncBytes
	ch <- c.malformedLength
	ch <- c.checksumErrors
	ch <- c.overflows
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.bytesIn, s.BytesIn)
	counter(c.frames, s.SmallFrames, KindSmallRaw.String())
	counter(c.frames, s.LargeFrames, KindLargeBands.String())
	counter(c.desyncBytes, s.DesyncBytes)
	counter(c.malformedLength, s.MalformedLength)
	counter(c.checksumErrors, s.ChecksumErrors)
	counter(c.overflows, s.Overflows)
}
