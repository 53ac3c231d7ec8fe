package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	requestDuration *prom.HistogramVec
	requests        *prom.CounterVec
	genDuration     *prom.HistogramVec
	genResults      *prom.CounterVec
	regenSuppressed prom.Counter
	invalidations   *prom.CounterVec
	regenInflight   prom.Gauge
	regenQueue      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.requestDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pagesmith",
			Name:      "page_request_duration_seconds",
			Help:      "Duration of page requests through the coordinator",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"})
		pr.requests = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagesmith",
			Name:      "page_requests_total",
			Help:      "Page requests by serving outcome",
		}, []string{"outcome"})
		pr.genDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pagesmith",
			Name:      "generation_duration_seconds",
			Help:      "Duration of page generation runs",
			Buckets:   prom.DefBuckets,
		}, []string{"kind", "result"})
		pr.genResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagesmith",
			Name:      "generation_results_total",
			Help:      "Generation runs by kind and result",
		}, []string{"kind", "result"})
		pr.regenSuppressed = prom.NewCounter(prom.CounterOpts{
			Namespace: "pagesmith",
			Name:      "regenerations_suppressed_total",
			Help:      "Regeneration triggers suppressed because one was already in flight",
		})
		pr.invalidations = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagesmith",
			Name:      "invalidations_total",
			Help:      "Explicit staleness invalidations by trigger",
		}, []string{"trigger"})
		pr.regenInflight = prom.NewGauge(prom.GaugeOpts{
			Namespace: "pagesmith",
			Name:      "regenerations_inflight",
			Help:      "Background regeneration tasks currently running",
		})
		pr.regenQueue = prom.NewGauge(prom.GaugeOpts{
			Namespace: "pagesmith",
			Name:      "regeneration_queue_length",
			Help:      "Background regeneration tasks waiting for a worker",
		})
		reg.MustRegister(pr.requestDuration, pr.requests, pr.genDuration, pr.genResults,
			pr.regenSuppressed, pr.invalidations, pr.regenInflight, pr.regenQueue)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveRequest(outcome Outcome, d time.Duration) {
	if p == nil || p.requests == nil {
		return
	}
	p.requests.WithLabelValues(string(outcome)).Inc()
	p.requestDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveGeneration(kind string, d time.Duration, success bool) {
	if p == nil || p.genDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.genDuration.WithLabelValues(kind, res).Observe(d.Seconds())
	p.genResults.WithLabelValues(kind, res).Inc()
}

func (p *PrometheusRecorder) IncRegenSuppressed() {
	if p == nil || p.regenSuppressed == nil {
		return
	}
	p.regenSuppressed.Inc()
}

func (p *PrometheusRecorder) IncInvalidation(trigger string) {
	if p == nil || p.invalidations == nil {
		return
	}
	p.invalidations.WithLabelValues(trigger).Inc()
}

func (p *PrometheusRecorder) SetRegenInflight(n int) {
	if p == nil || p.regenInflight == nil {
		return
	}
	p.regenInflight.Set(float64(n))
}

func (p *PrometheusRecorder) SetRegenQueueLength(n int) {
	if p == nil || p.regenQueue == nil {
		return
	}
	p.regenQueue.Set(float64(n))
}
