package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Factory creates metrics that are registered on a single registry.
// The txmgr and deployer metrics are constructed through it so that
// tests can use an isolated registry.
type Factory interface {
	NewCounter(opts prometheus.CounterOpts) prometheus.Counter
	NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec
	NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge
	NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec
	NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram
	NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec
}

type factory struct {
	inner promauto.Factory
}

func With(registry *prometheus.Registry) Factory {
	return &factory{inner: promauto.With(registry)}
}

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func (f *factory) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	return f.inner.NewCounter(opts)
}

func (f *factory) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	return f.inner.NewCounterVec(opts, labelNames)
}

func (f *factory) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	return f.inner.NewGauge(opts)
}

func (f *factory) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	return f.inner.NewGaugeVec(opts, labelNames)
}

func (f *factory) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	return f.inner.NewHistogram(opts)
}

func (f *factory) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	return f.inner.NewHistogramVec(opts, labelNames)
}
