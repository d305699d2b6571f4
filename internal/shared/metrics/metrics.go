// Package metrics holds the Prometheus instrumentation for reconciliation,
// provisioning and node allocation.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relaygate"

var (
	// WebhookOutcomesTotal counts processed notifications by provider and outcome.
	WebhookOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_outcomes_total",
			Help:      "Payment notifications by provider and reconciliation outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// PaymentsCreatedTotal counts payment creation attempts by provider and result.
	PaymentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Payment creation attempts by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// ProvisioningTotal counts provisioning operations by kind and result.
	ProvisioningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_total",
			Help:      "Remote account operations by kind (provision, deprovision) and result.",
		},
		[]string{"kind", "result"},
	)

	// ProvisioningDuration observes remote account operation latency.
	ProvisioningDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provisioning_duration_seconds",
			Help:      "Remote account operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// NodeLoadRatio exposes the last polled load ratio per node.
	NodeLoadRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_load_ratio",
			Help:      "Last observed load ratio per node (unlimited nodes report the sentinel).",
		},
		[]string{"node"},
	)

	// NodePollFailuresTotal counts failed load polls per node.
	NodePollFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_poll_failures_total",
			Help:      "Failed node load polls.",
		},
		[]string{"node"},
	)

	// BackgroundPanicsTotal counts panics recovered in background goroutines.
	BackgroundPanicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_panics_total",
			Help:      "Panics recovered in background goroutines by goroutine name.",
		},
		[]string{"goroutine"},
	)

	// AllocatorRefreshesTotal counts full cache refreshes.
	AllocatorRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "allocator_refreshes_total",
		Help:      "Full node load cache refreshes.",
	})

	// TrialGrantsTotal counts trial grant requests by result.
	TrialGrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trial_grants_total",
			Help:      "Trial grant requests by result (created, replayed, rejected).",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status class.",
		},
		[]string{"method", "path", "status"},
	)
)

// Middleware records request counts by route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), statusClass(c.Writer.Status())).Inc()
	}
}

// Handler serves /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
