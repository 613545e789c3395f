// Package metrics exposes the service's Prometheus collectors and the
// per-request middleware.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stayhq_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stayhq_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stayhq_webhook_deliveries_total",
		Help: "Total webhook delivery attempts by outcome.",
	}, []string{"status"})

	subscriptionsDeactivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stayhq_subscriptions_deactivated_total",
		Help: "Total subscriptions deactivated after crossing the failure threshold.",
	})

	notificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stayhq_notifications_created_total",
		Help: "Total in-app notifications created.",
	})

	streamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stayhq_stream_connections",
		Help: "Currently open real-time stream connections.",
	})

	streamEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stayhq_stream_events_total",
		Help: "Total events written to stream clients by type.",
	}, []string{"type"})

	streamEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stayhq_stream_events_dropped_total",
		Help: "Total non-heartbeat events dropped from slow stream connections.",
	})
)

// RecordDelivery records one webhook delivery attempt outcome.
func RecordDelivery(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	webhookDeliveriesTotal.WithLabelValues(status).Inc()
}

// RecordDeactivation counts a subscription crossing the failure threshold.
func RecordDeactivation() { subscriptionsDeactivated.Inc() }

// RecordNotificationCreated counts one notification row written.
func RecordNotificationCreated() { notificationsCreated.Inc() }

// SetStreamConnections updates the open-connection gauge.
func SetStreamConnections(n int) { streamConnections.Set(float64(n)) }

// RecordStreamEvent counts one event written to a stream client.
func RecordStreamEvent(eventType string) { streamEventsTotal.WithLabelValues(eventType).Inc() }

// RecordStreamDrop counts one dropped stream event.
func RecordStreamDrop() { streamEventsDropped.Inc() }

// Middleware returns a gin middleware recording per-request counters and
// latencies.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
