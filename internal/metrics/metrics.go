// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasknest_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tasknest_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	OTPIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasknest_otp_issued_total",
		Help: "One-time codes generated, by kind.",
	}, []string{"kind"})

	OTPChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasknest_otp_checks_total",
		Help: "One-time code checks, by kind and outcome.",
	}, []string{"kind", "outcome"})

	OTPSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tasknest_otp_swept_total",
		Help: "Expired one-time codes cleared by the background sweeper.",
	})

	MailEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasknest_mail_events_total",
		Help: "Outbound mail lifecycle events: queued, sent, retried, dead.",
	}, []string{"event"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasknest_rate_limited_total",
		Help: "Requests rejected by a rate limiter, by scope.",
	}, []string{"scope"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
