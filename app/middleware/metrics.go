package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Campaign send attempts partitioned by channel and outcome
	broadcastMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_sent_total",
			Help: "Total campaign message send attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	// Finished campaign runs partitioned by terminal status
	broadcastCampaignsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_campaigns_finished_total",
			Help: "Total campaign runs reaching a terminal status",
		},
		[]string{"status"},
	)

	// Inbound webhook events partitioned by channel and classification
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total inbound webhook events by channel and kind",
		},
		[]string{"channel", "kind"},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		method := c.Method()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // Use route template to avoid high cardinality
		}

		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordBroadcastSend counts one campaign send attempt
func RecordBroadcastSend(channel models.Channel, result string) {
	broadcastMessagesSent.WithLabelValues(string(channel), result).Inc()
}

// RecordCampaignFinished counts one campaign run reaching a terminal status
func RecordCampaignFinished(status models.CampaignStatus) {
	broadcastCampaignsFinished.WithLabelValues(string(status)).Inc()
}

// RecordWebhookEvent counts one classified inbound webhook event
func RecordWebhookEvent(channel models.Channel, kind string) {
	webhookEventsTotal.WithLabelValues(string(channel), kind).Inc()
}
