// Package metrics exposes package-level prometheus collectors for the
// publish engine, dispatcher and endpoint, in the same package-level-var
// style as the original hub server's metrics.go, renamed to the
// subscription/session domain (opcua_ prefix instead of ws_).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NotificationsQueued counts notification payloads enqueued onto a
	// subscription's FIFO.
	NotificationsQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opcua_notifications_queued_total",
		Help: "Total number of notification payloads queued onto subscriptions",
	})

	// NotificationsPublished counts notifications drained into
	// NotificationMessages sent to clients.
	NotificationsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opcua_notifications_published_total",
		Help: "Total number of notification payloads published in messages",
	})

	// KeepAlivesSent counts empty keep-alive messages emitted.
	KeepAlivesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opcua_keep_alives_sent_total",
		Help: "Total number of keep-alive notification messages sent",
	})

	// SubscriptionsActive tracks the number of open server subscriptions.
	SubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opcua_subscriptions_active",
		Help: "Current number of active server subscriptions",
	})

	// SubscriptionsClosed counts subscription closures by reason.
	SubscriptionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opcua_subscriptions_closed_total",
		Help: "Total subscription closures by reason",
	}, []string{"reason"})

	// MonitoredItemsActive tracks the number of open monitored items
	// across all subscriptions.
	MonitoredItemsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opcua_monitored_items_active",
		Help: "Current number of active monitored items",
	})

	// PendingPublishRequests tracks the depth of the session dispatcher's
	// FIFO.
	PendingPublishRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opcua_pending_publish_requests",
		Help: "Current number of queued Publish requests awaiting a notification",
	})

	// PublishTimeouts counts Publish requests completed with BadTimeout
	// by the 1Hz session timer.
	PublishTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opcua_publish_timeouts_total",
		Help: "Total number of pending Publish requests completed with BadTimeout",
	})

	// SessionsActive tracks open server sessions.
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opcua_sessions_active",
		Help: "Current number of active server sessions",
	})

	// SessionsRejected counts CreateSession attempts rejected by the
	// admission guard.
	SessionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opcua_sessions_rejected_total",
		Help: "Total CreateSession attempts rejected, by reason",
	}, []string{"reason"})

	// ClientPublishLatency measures round-trip latency of the client's
	// single-flight Publish call.
	ClientPublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "opcua_client_publish_latency_seconds",
		Help:    "Latency of client Publish round-trips",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
)

func init() {
	prometheus.MustRegister(
		NotificationsQueued,
		NotificationsPublished,
		KeepAlivesSent,
		SubscriptionsActive,
		SubscriptionsClosed,
		MonitoredItemsActive,
		PendingPublishRequests,
		PublishTimeouts,
		SessionsActive,
		SessionsRejected,
		ClientPublishLatency,
	)
}

// Handler returns the promhttp handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
