// Package metrics records loader operations. Collector exports them to
// Prometheus; ExpvarRecorder publishes process-local totals via expvar.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"metacore/pkg/metamodel"
)

var _ metamodel.MetricsRecorder = (*Collector)(nil)

// Collector owns a private registry so several loaders (and tests) never
// collide on the default one.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	failures   *prometheus.GaugeVec
}

// NewCollector creates a collector under namespace (default "metacore").
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "metacore"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metamodel",
			Name:      "operations_total",
			Help:      "Specification builds and validation runs by result",
		},
		[]string{"operation", "result"},
	)
	c.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "metamodel",
			Name:      "operation_duration_seconds",
			Help:      "Time taken by specification builds and validation runs",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
		},
		[]string{"operation"},
	)
	c.failures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "metamodel",
			Name:      "validation_failures",
			Help:      "Failures reported by the last validation run by severity",
		},
		[]string{"severity"},
	)

	c.registry.MustRegister(
		c.operations,
		c.latency,
		c.failures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Observe implements metamodel.MetricsRecorder.
func (c *Collector) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	c.operations.WithLabelValues(operation, result).Inc()
	c.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetFailures records the failure counts of the latest validation.
func (c *Collector) SetFailures(bySeverity map[string]int) {
	c.failures.Reset()
	for severity, n := range bySeverity {
		c.failures.WithLabelValues(severity).Set(float64(n))
	}
}

// TrackSpecifications exports the number of cached specifications as a gauge
// read on every scrape.
func (c *Collector) TrackSpecifications(namespace string, count func() int) error {
	if namespace == "" {
		namespace = "metacore"
	}
	return c.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "metamodel",
			Name:      "specifications",
			Help:      "Specifications currently cached by the loader",
		},
		func() float64 { return float64(count()) },
	))
}

// Registry exposes the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Multi fans observations out to several recorders.
type Multi []metamodel.MetricsRecorder

// Observe implements metamodel.MetricsRecorder.
func (m Multi) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}
