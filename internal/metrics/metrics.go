package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_collector"

// Cycle results.
const (
	CycleSuccess = "success"
	CyclePartial = "partial"
	CycleEmpty   = "empty"
	CycleFailed  = "failed"
)

// Collector groups the collector's Prometheus instruments.
// A nil *Collector is valid and records nothing.
type Collector struct {
	cycles            *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
	locationsResolved prometheus.Gauge
	pipeline          *prometheus.CounterVec
	publish           *prometheus.CounterVec
	lastSuccess       prometheus.Gauge
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Collection cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a collection cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		locationsResolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locations_resolved",
			Help:      "Locations resolved for the most recent cycle.",
		}),
		pipeline: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_total",
			Help:      "Location pipeline outcomes by stage.",
		}, []string{"stage", "result"}),
		publish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Broker publish attempts by result.",
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successfully published record.",
		}),
	}

	reg.MustRegister(
		c.cycles,
		c.cycleDuration,
		c.locationsResolved,
		c.pipeline,
		c.publish,
		c.lastSuccess,
	)
	return c
}

// ObserveCycle records one finished cycle.
func (c *Collector) ObserveCycle(result string, resolved int, took time.Duration) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(took.Seconds())
	c.locationsResolved.Set(float64(resolved))
}

// ObservePipeline records the outcome of one location pipeline. stage is the
// failing stage, or empty on success.
func (c *Collector) ObservePipeline(stage string, at time.Time) {
	if c == nil {
		return
	}
	if stage == "" {
		c.pipeline.WithLabelValues("complete", "success").Inc()
		c.lastSuccess.Set(float64(at.Unix()))
		return
	}
	c.pipeline.WithLabelValues(stage, "failure").Inc()
}

// ObservePublish records one publish attempt.
func (c *Collector) ObservePublish(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.publish.WithLabelValues("failure").Inc()
		return
	}
	c.publish.WithLabelValues("success").Inc()
}
