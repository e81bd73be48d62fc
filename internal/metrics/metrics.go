package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Live delivery outcomes
const (
	DeliveryDelivered = "delivered"
	DeliveryOffline   = "offline"
	DeliveryDropped   = "dropped"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goatdm_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goatdm_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Messaging metrics
	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goatdm_messages_persisted_total",
			Help: "Total direct messages persisted",
		},
		[]string{"path"}, // "http" or "socket"
	)

	LiveDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goatdm_live_deliveries_total",
			Help: "Live delivery attempts by outcome",
		},
		[]string{"result"},
	)

	// Presence metrics
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "goatdm_online_users",
			Help: "Users currently present in the registry",
		},
	)

	PresenceBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "goatdm_presence_broadcasts_total",
			Help: "Total presence broadcasts",
		},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goatdm_store_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .5},
		},
		[]string{"op"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goatdm_rate_limit_hits_total",
			Help: "Total rate limit rejections",
		},
		[]string{"limiter"},
	)
)
