package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"report-api/internal/domain"
)

// PrometheusRecorder implementa domain.MetricsRecorder sobre um registry próprio
type PrometheusRecorder struct {
	registry           *prometheus.Registry
	decisions          *prometheus.CounterVec
	buckets            prometheus.Gauge
	retention          *prometheus.CounterVec
	retentionFailures  *prometheus.CounterVec
	paymentTransitions *prometheus.CounterVec
}

// NewPrometheusRecorder cria e registra os coletores
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limiter admission decisions.",
		}, []string{"decision"}),
		buckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratelimit_buckets",
			Help: "Token buckets currently held in memory.",
		}),
		retention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retention_reports_total",
			Help: "Reports changed by retention sweeps.",
		}, []string{"operation"}),
		retentionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retention_sweep_failures_total",
			Help: "Retention sweeps aborted by a store error.",
		}, []string{"operation"}),
		paymentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_transitions_total",
			Help: "Payment status transitions applied from provider events.",
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		r.decisions,
		r.buckets,
		r.retention,
		r.retentionFailures,
		r.paymentTransitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *PrometheusRecorder) RateLimitDecision(allowed bool) {
	decision := "rejected"
	if allowed {
		decision = "allowed"
	}
	r.decisions.WithLabelValues(decision).Inc()
}

func (r *PrometheusRecorder) RateLimitBuckets(count int) {
	r.buckets.Set(float64(count))
}

func (r *PrometheusRecorder) RetentionSweep(operation string, count int) {
	r.retention.WithLabelValues(operation).Add(float64(count))
}

func (r *PrometheusRecorder) RetentionSweepFailed(operation string) {
	r.retentionFailures.WithLabelValues(operation).Inc()
}

func (r *PrometheusRecorder) PaymentTransition(status domain.PaymentStatus) {
	r.paymentTransitions.WithLabelValues(string(status)).Inc()
}

// Handler expõe as métricas no formato de exposição do Prometheus
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry retorna o registry subjacente
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// NoopRecorder descarta tudo; usado quando observabilidade está desligada
type NoopRecorder struct{}

func (NoopRecorder) RateLimitDecision(bool)                 {}
func (NoopRecorder) RateLimitBuckets(int)                   {}
func (NoopRecorder) RetentionSweep(string, int)             {}
func (NoopRecorder) RetentionSweepFailed(string)            {}
func (NoopRecorder) PaymentTransition(domain.PaymentStatus) {}
