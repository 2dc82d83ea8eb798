package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"report-api/internal/domain"
)

func TestPrometheusRecorder(t *testing.T) {
	recorder := NewPrometheusRecorder()

	recorder.RateLimitDecision(true)
	recorder.RateLimitDecision(true)
	recorder.RateLimitDecision(false)
	recorder.RateLimitBuckets(7)
	recorder.RetentionSweep("expire", 3)
	recorder.RetentionSweep("expire", 2)
	recorder.RetentionSweepFailed("delete")
	recorder.PaymentTransition(domain.PaymentSucceeded)

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.decisions.WithLabelValues("allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.decisions.WithLabelValues("rejected")))
	assert.Equal(t, 7.0, testutil.ToFloat64(recorder.buckets))
	assert.Equal(t, 5.0, testutil.ToFloat64(recorder.retention.WithLabelValues("expire")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.retentionFailures.WithLabelValues("delete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.paymentTransitions.WithLabelValues("succeeded")))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	recorder := NewPrometheusRecorder()
	recorder.RateLimitDecision(false)

	w := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ratelimit_decisions_total{decision="rejected"} 1`)
}

func TestNoopRecorder(t *testing.T) {
	var recorder domain.MetricsRecorder = NoopRecorder{}

	assert.NotPanics(t, func() {
		recorder.RateLimitDecision(true)
		recorder.RateLimitBuckets(1)
		recorder.RetentionSweep("expire", 1)
		recorder.RetentionSweepFailed("expire")
		recorder.PaymentTransition(domain.PaymentRefunded)
	})
}
