// Package metrics provides Prometheus instrumentation for contraverify.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification metrics
	verificationSubmitTotal *prometheus.CounterVec
	verificationPollTotal   *prometheus.CounterVec
	statusNotificationTotal *prometheus.CounterVec
)

// Init initializes the metrics system. Calling it more than once is a no-op after the
// first enabled call.
func Init(enabledFlag bool, svcName string) {
	if enabled {
		return
	}
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	constLabels := prometheus.Labels{"service": svcName}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	// result is "accepted", "rejected" or "error"
	verificationSubmitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "verification_submit_total",
			Help:        "Total number of verification submissions",
			ConstLabels: constLabels,
		},
		[]string{"network", "result"},
	)

	verificationPollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "verification_poll_total",
			Help:        "Total number of checkverifystatus polls",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	statusNotificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "status_notification_total",
			Help:        "Total number of status notifications sent to the host",
			ConstLabels: constLabels,
		},
		[]string{"key"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name.
func ServiceName() string {
	return serviceName
}
