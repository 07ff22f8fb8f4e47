package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every FireLaunch metric.
const Namespace = "firelaunch"

// FetchMetrics captures fetch orchestrator activity.
type FetchMetrics interface {
	AddBytes(kind string, n int64)
	IncArtifacts(kind, status string)
	IncRetries(reason string)
	SetInFlight(n int)
	ObserveFetchRun(status string, durationSeconds float64)
}

// Noop implements FetchMetrics without emitting anything.
type Noop struct{}

func (Noop) AddBytes(string, int64)          {}
func (Noop) IncArtifacts(string, string)     {}
func (Noop) IncRetries(string)               {}
func (Noop) SetInFlight(int)                 {}
func (Noop) ObserveFetchRun(string, float64) {}

// Prom implements FetchMetrics backed by Prometheus collectors.
type Prom struct {
	bytes     *prometheus.CounterVec
	artifacts *prometheus.CounterVec
	retries   *prometheus.CounterVec
	inFlight  prometheus.Gauge
	runs      *prometheus.HistogramVec
	once      sync.Once
}

// NewProm creates collectors and registers them with reg, or the default
// registerer when reg is nil.
func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes downloaded by artifact kind",
		}, []string{"kind"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "artifacts_total",
			Help:      "Artifacts processed by kind and status (fetched, skipped, failed)",
		}, []string{"kind", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "download_retries_total",
			Help:      "Download retries by reason",
		}, []string{"reason"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "downloads_in_flight",
			Help:      "Downloads currently running",
		}),
		runs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "fetch_run_duration_seconds",
			Help:      "Duration of fetch runs by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p.once.Do(func() {
		reg.MustRegister(p.bytes, p.artifacts, p.retries, p.inFlight, p.runs)
	})
	return p
}

func (p *Prom) AddBytes(kind string, n int64) {
	p.bytes.WithLabelValues(kind).Add(float64(n))
}

func (p *Prom) IncArtifacts(kind, status string) {
	p.artifacts.WithLabelValues(kind, status).Inc()
}

func (p *Prom) IncRetries(reason string) {
	p.retries.WithLabelValues(reason).Inc()
}

func (p *Prom) SetInFlight(n int) {
	p.inFlight.Set(float64(n))
}

func (p *Prom) ObserveFetchRun(status string, durationSeconds float64) {
	p.runs.WithLabelValues(status).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
