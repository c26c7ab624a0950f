// Package metrics exposes Prometheus collectors for script runs
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "querybook"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Collector records operation and run metrics
type Collector struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	documents  *prometheus.CounterVec
	runs       *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of executed operations",
			},
			[]string{"kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Operation execution duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"kind"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_returned_total",
				Help:      "Total number of documents returned by find and aggregate",
			},
			[]string{"kind"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished runs by final state",
			},
			[]string{"state"},
		),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{c.operations, c.duration, c.documents, c.runs} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// RecordOperation records one executed operation
func (c *Collector) RecordOperation(kind string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	c.operations.WithLabelValues(kind, outcome).Inc()
	c.duration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDocuments records the number of documents an operation returned
func (c *Collector) RecordDocuments(kind string, n int) {
	c.documents.WithLabelValues(kind).Add(float64(n))
}

// RecordRun records a finished run
func (c *Collector) RecordRun(state string) {
	c.runs.WithLabelValues(state).Inc()
}
