package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects pipeline metrics. A nil *Recorder is a no-op.
type Recorder struct {
	gatherer         prometheus.Gatherer
	acquireTotal     *prometheus.CounterVec
	waitSeconds      *prometheus.HistogramVec
	cacheRequests    *prometheus.CounterVec
	pipelineRuns     *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
}

// New registers the pipeline series on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		acquireTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimit_acquire_total",
				Help: "Admission control acquisitions by source and priority",
			},
			[]string{"source", "priority"},
		),
		waitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratelimit_wait_seconds",
				Help:    "Time spent waiting for tokens",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"source"},
		),
		cacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_requests_total",
				Help: "Cache lookups by tier and result",
			},
			[]string{"tier", "result"},
		),
		pipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Analysis pipeline runs by result",
			},
			[]string{"result"},
		),
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Outbound requests by source and status",
			},
			[]string{"source", "status"},
		),
	}
}

func (r *Recorder) RecordAcquire(source, priority string, waitSeconds float64) {
	if r == nil {
		return
	}
	r.acquireTotal.WithLabelValues(source, priority).Inc()
	r.waitSeconds.WithLabelValues(source).Observe(waitSeconds)
}

func (r *Recorder) RecordCache(tier, result string) {
	if r == nil {
		return
	}
	r.cacheRequests.WithLabelValues(tier, result).Inc()
}

func (r *Recorder) RecordPipeline(result string) {
	if r == nil {
		return
	}
	r.pipelineRuns.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordUpstream(source, status string) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(source, status).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
