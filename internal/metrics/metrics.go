// Package metrics exposes Prometheus counters for the aggregation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "station_aggregator"

// Metrics groups the pipeline counters.
type Metrics struct {
	readingsAccepted *prometheus.CounterVec
	readingsDropped  *prometheus.CounterVec
	samplesFlushed   *prometheus.CounterVec
	emptyFlushes     prometheus.Counter
	sinkFailures     prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		readingsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_accepted_total",
			Help:      "Readings applied to a station accumulator.",
		}, []string{"kind"}),
		readingsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_dropped_total",
			Help:      "Readings rejected or dropped before aggregation.",
		}, []string{"reason"}),
		samplesFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_flushed_total",
			Help:      "Samples emitted by a flush and written to the sink.",
		}, []string{"station"}),
		emptyFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_flushes_total",
			Help:      "Flushes of a period without readings.",
		}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Samples the sink failed to write.",
		}),
	}
	reg.MustRegister(m.readingsAccepted, m.readingsDropped, m.samplesFlushed, m.emptyFlushes, m.sinkFailures)
	return m
}

func (m *Metrics) ReadingAccepted(kind string) { m.readingsAccepted.WithLabelValues(kind).Inc() }
func (m *Metrics) ReadingDropped(reason string) { m.readingsDropped.WithLabelValues(reason).Inc() }
func (m *Metrics) SampleFlushed(station string) { m.samplesFlushed.WithLabelValues(station).Inc() }
func (m *Metrics) EmptyFlush()                  { m.emptyFlushes.Inc() }
func (m *Metrics) SinkFailure()                 { m.sinkFailures.Inc() }
