package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"brandseed/cargo"
)

const namespace = "brandseed"

// Metrics tracks one load run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	generated prometheus.Counter
	records   *prometheus.CounterVec
	batches   *prometheus.CounterVec
	attempts  prometheus.Counter
	duration  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_generated_total",
			Help:      "Brands produced by the generator.",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_submitted_total",
			Help:      "Brands in sealed batches, by result: ok, failed or unsent.",
		}, []string{"result"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Sealed batches, by result: ok, failed or unsent.",
		}, []string{"result"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submit_attempts_total",
			Help:      "Submission attempts including retries.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_submit_duration_seconds",
			Help:      "Time to submit one batch, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	m.registry.MustRegister(m.generated, m.records, m.batches, m.attempts, m.duration)
	return m
}

func (m *Metrics) RecordGenerated() { m.generated.Inc() }

// BatchFlushed implements cargo.Observer.
func (m *Metrics) BatchFlushed(o cargo.Outcome) {
	result := "ok"
	switch {
	case !o.Sent():
		result = "unsent"
	case !o.OK():
		result = "failed"
	}
	m.records.WithLabelValues(result).Add(float64(o.Size))
	m.batches.WithLabelValues(result).Inc()
	if o.Sent() {
		m.attempts.Add(float64(o.Attempts))
		m.duration.Observe(o.Duration.Seconds())
	}
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "write metrics to %s", path)
}
