package gdbscan

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector backed by Prometheus.
// Metrics are registered lazily on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	points       *prometheus.CounterVec
	coresCreated prometheus.Counter
	merges       prometheus.Counter
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	runPoints    prometheus.Gauge
}

var _ MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a Prometheus-backed collector. A nil reg
// uses prometheus.DefaultRegisterer; an empty namespace defaults to "gdbscan".
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "gdbscan"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.points = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "points_processed_total",
			Help:      "Points processed by the merge engine, by kind (core, noncore).",
		}, []string{"kind"})
		p.coresCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "core_records_total",
			Help:      "Cluster forest records allocated.",
		})
		p.merges = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "merges_total",
			Help:      "Unions of previously distinct clusters.",
		})
		p.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "runs_total",
			Help:      "Clustering runs by result (success, config_error, resource_error, runtime_error).",
		}, []string{"result"})
		p.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of clustering runs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~4.4min
		})
		p.runPoints = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "last_run_points",
			Help:      "Size of the point universe of the most recent run.",
		})

		p.reg.MustRegister(p.points)
		p.reg.MustRegister(p.coresCreated)
		p.reg.MustRegister(p.merges)
		p.reg.MustRegister(p.runs)
		p.reg.MustRegister(p.runDuration)
		p.reg.MustRegister(p.runPoints)
	})
}

func (p *PrometheusCollector) RecordPoint(core bool) {
	p.ensureRegistered()
	kind := "noncore"
	if core {
		kind = "core"
	}
	p.points.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) RecordCoreCreated() {
	p.ensureRegistered()
	p.coresCreated.Inc()
}

func (p *PrometheusCollector) RecordMerge() {
	p.ensureRegistered()
	p.merges.Inc()
}

func (p *PrometheusCollector) RecordRun(points int, duration time.Duration, err error) {
	p.ensureRegistered()
	result := "success"
	if err != nil {
		result = Classify(err).String() + "_error"
	}
	p.runs.WithLabelValues(result).Inc()
	p.runDuration.Observe(duration.Seconds())
	p.runPoints.Set(float64(points))
}
