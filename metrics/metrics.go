// Package metrics exposes Prometheus counters for the credential flows.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ActivityCollector counts activity events and HTTP traffic. It implements
// credentials.ActivitySink.
type ActivityCollector struct {
	events        *prometheus.CounterVec
	verifications *prometheus.CounterVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

var _ credentials.ActivitySink = (*ActivityCollector)(nil)

// NewActivityCollector creates the collector and registers its metrics on reg.
func NewActivityCollector(reg prometheus.Registerer) *ActivityCollector {
	c := &ActivityCollector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_activity_events_total",
			Help: "Credential flow events by type and outcome",
		}, []string{"event_type", "outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_code_verifications_total",
			Help: "Recovery code verifications by result",
		}, []string{"status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credentials_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.events,
		c.verifications,
		c.requests,
		c.latency,
	)

	return c
}

// Record implements credentials.ActivitySink.
func (c *ActivityCollector) Record(_ context.Context, event credentials.ActivityEvent) error {
	outcome := event.Outcome
	if outcome == "" {
		outcome = credentials.ActivityOutcomeSuccess
	}
	c.events.WithLabelValues(string(event.EventType), outcome).Inc()

	if event.EventType == credentials.ActivityEventRecoveryCodeVerified {
		if status, ok := event.Metadata["status"].(string); ok {
			c.verifications.WithLabelValues(status).Inc()
		}
	}
	return nil
}

// ObserveRequest records one HTTP request.
func (c *ActivityCollector) ObserveRequest(route string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
