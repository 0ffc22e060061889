package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Label sets stay bounded: route is the registered pattern (or "unmatched"),
// status is the numeric code, event is one of the Event* constants.
var (
	httpReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "HTTP requests currently being served.",
	})

	// Deal pages and listings are small JSON documents.
	httpRespSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "HTTP response size by route.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 7), // 256B..1MiB
	}, []string{"route"})

	notModified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_not_modified_total",
		Help: "Conditional GETs answered with 304 by route.",
	}, []string{"route"})

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected with 429 by method class.",
	}, []string{"class"})

	dealEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deals_events_total",
		Help: "Deal engagement events handled by the API.",
	}, []string{"event"})
)

// Deal event kinds accepted by CountDealEvent.
const (
	EventLike          = "like"
	EventUnlike        = "unlike"
	EventRelatedLike   = "related_like"
	EventRelatedUnlike = "related_unlike"
	EventReplay        = "idempotent_replay"
	EventAnalytics     = "analytics"
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, notModified, rateLimited, dealEvents)
}

// CountDealEvent increments the engagement counter for event.
func CountDealEvent(event string) {
	dealEvents.WithLabelValues(event).Inc()
}

// Metrics instruments every request; expose the registry with promhttp on
// /metrics.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route, method, status := routeLabel(c), c.Request.Method, c.Writer.Status()
		httpReqs.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			httpRespSize.WithLabelValues(route).Observe(float64(n))
		}
		if status == 304 {
			notModified.WithLabelValues(route).Inc()
		}
	}
}
