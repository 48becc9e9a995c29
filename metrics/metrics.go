// Package metrics exposes session statistics as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opd-ai/rtspclient/rtp"
	"github.com/opd-ai/rtspclient/session"
)

const namespace = "rtspclient"

// Source supplies the statistics snapshot read on every scrape.
type Source interface {
	Statistics() rtp.Snapshot
}

// BufferSource is implemented by sources that can report reorder buffer depth.
type BufferSource interface {
	Buffered() int
}

// Collector reads a Source on each scrape and reports its counters and
// derived rates.
type Collector struct {
	source Source

	received   *prometheus.Desc
	highestSeq *prometheus.Desc
	outOfOrder *prometheus.Desc
	bytes      *prometheus.Desc
	lossRate   *prometheus.Desc
	oooRate    *prometheus.Desc
	frameRate  *prometheus.Desc
	byteRate   *prometheus.Desc
	elapsed    *prometheus.Desc
	buffered   *prometheus.Desc
}

// NewCollector creates a collector over source.
func NewCollector(source Source) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}

	return &Collector{
		source:     source,
		received:   desc("frames_received_total", "Media frames decoded since the last SETUP"),
		highestSeq: desc("highest_sequence_number", "Highest media sequence number observed"),
		outOfOrder: desc("frames_out_of_order_total", "Frames that did not follow their predecessor"),
		bytes:      desc("payload_bytes_received_total", "Payload bytes received since the last SETUP"),
		lossRate:   desc("loss_ratio", "Fraction of sequence numbers never received"),
		oooRate:    desc("out_of_order_ratio", "Out-of-order frames relative to the highest sequence number"),
		frameRate:  desc("frame_rate", "Frames received per second since playback started"),
		byteRate:   desc("byte_rate", "Payload bytes received per second since playback started"),
		elapsed:    desc("elapsed_seconds", "Seconds between playback start and the last received frame"),
		buffered:   desc("buffered_frames", "Frames waiting in the reorder buffer"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.received
	ch <- c.highestSeq
	ch <- c.outOfOrder
	ch <- c.bytes
	ch <- c.lossRate
	ch <- c.oooRate
	ch <- c.frameRate
	ch <- c.byteRate
	ch <- c.elapsed
	if _, ok := c.source.(BufferSource); ok {
		ch <- c.buffered
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.Statistics()

	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(snap.Received))
	ch <- prometheus.MustNewConstMetric(c.highestSeq, prometheus.GaugeValue, float64(snap.HighestSeq))
	ch <- prometheus.MustNewConstMetric(c.outOfOrder, prometheus.CounterValue, float64(snap.OutOfOrder))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(snap.Bytes))
	ch <- prometheus.MustNewConstMetric(c.lossRate, prometheus.GaugeValue, snap.LossRate())
	ch <- prometheus.MustNewConstMetric(c.oooRate, prometheus.GaugeValue, snap.OutOfOrderRate())
	ch <- prometheus.MustNewConstMetric(c.frameRate, prometheus.GaugeValue, snap.FrameRate())
	ch <- prometheus.MustNewConstMetric(c.byteRate, prometheus.GaugeValue, snap.ByteRate())
	ch <- prometheus.MustNewConstMetric(c.elapsed, prometheus.GaugeValue, snap.Elapsed())

	if bs, ok := c.source.(BufferSource); ok {
		ch <- prometheus.MustNewConstMetric(c.buffered, prometheus.GaugeValue, float64(bs.Buffered()))
	}
}

// Listener wraps a session.Listener and counts the events passing through it.
type Listener struct {
	next session.Listener

	FramesPlayed   prometheus.Counter
	Errors         *prometheus.CounterVec
	ResourcesBound prometheus.Counter
	Teardowns      prometheus.Counter
}

// NewListener wraps next. A nil next only counts.
func NewListener(next session.Listener) *Listener {
	if next == nil {
		next = session.NopListener{}
	}

	return &Listener{
		next: next,
		FramesPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_played_total",
			Help:      "Frames handed to the consumer by the playback task",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Failed session commands by error kind",
		}, []string{"kind"}),
		ResourcesBound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_bound_total",
			Help:      "Successful SETUP commands",
		}),
		Teardowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardowns_total",
			Help:      "Successful TEARDOWN commands",
		}),
	}
}

func (l *Listener) OnFrame(f *rtp.Frame) {
	l.FramesPlayed.Inc()
	l.next.OnFrame(f)
}

func (l *Listener) OnError(kind session.ErrorKind, message string) {
	l.Errors.WithLabelValues(kind.String()).Inc()
	l.next.OnError(kind, message)
}

func (l *Listener) OnResourceBound(name string) {
	l.ResourcesBound.Inc()
	l.next.OnResourceBound(name)
}

// OnStatistics counts the teardown and forwards the snapshot if the wrapped
// listener wants it.
func (l *Listener) OnStatistics(snap rtp.Snapshot) {
	l.Teardowns.Inc()
	if sl, ok := l.next.(session.StatisticsListener); ok {
		sl.OnStatistics(snap)
	}
}

// Describe implements prometheus.Collector.
func (l *Listener) Describe(ch chan<- *prometheus.Desc) {
	l.FramesPlayed.Describe(ch)
	l.Errors.Describe(ch)
	l.ResourcesBound.Describe(ch)
	l.Teardowns.Describe(ch)
}

// Collect implements prometheus.Collector.
func (l *Listener) Collect(ch chan<- prometheus.Metric) {
	l.FramesPlayed.Collect(ch)
	l.Errors.Collect(ch)
	l.ResourcesBound.Collect(ch)
	l.Teardowns.Collect(ch)
}

// Register registers a Collector over source and, if non-nil, the event
// counters of l with reg.
func Register(reg prometheus.Registerer, source Source, l *Listener) (*Collector, error) {
	c := NewCollector(source)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	if l != nil {
		if err := reg.Register(l); err != nil {
			reg.Unregister(c)
			return nil, err
		}
	}
	return c, nil
}
