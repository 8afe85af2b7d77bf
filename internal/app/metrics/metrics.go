package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "roastcast",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roastcast",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roastcast",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	roastsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roastcast",
			Subsystem: "ledger",
			Name:      "roasts_created_total",
			Help:      "Total number of roasts persisted.",
		},
		[]string{"self"},
	)

	reactionsToggled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roastcast",
			Subsystem: "ledger",
			Name:      "reactions_toggled_total",
			Help:      "Total number of reaction toggles applied.",
		},
		[]string{"kind", "action"},
	)

	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roastcast",
			Subsystem: "ledger",
			Name:      "ratelimit_rejections_total",
			Help:      "Total number of actions rejected by the rate limiter.",
		},
		[]string{"kind"},
	)

	challengeVotes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "roastcast",
			Subsystem: "challenge",
			Name:      "votes_total",
			Help:      "Total number of accepted challenge votes.",
		},
	)

	generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roastcast",
			Subsystem: "gen",
			Name:      "completions_total",
			Help:      "Total number of roast generation calls.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		roastsCreated,
		reactionsToggled,
		rateLimitRejections,
		challengeVotes,
		generations,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware collects request metrics for every route on the engine.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordRoastCreated counts one persisted roast.
func RecordRoastCreated(selfRoast bool) {
	roastsCreated.WithLabelValues(strconv.FormatBool(selfRoast)).Inc()
}

// RecordReactionToggled counts one applied toggle.
func RecordReactionToggled(kind string, added bool) {
	action := "removed"
	if added {
		action = "added"
	}
	reactionsToggled.WithLabelValues(kind, action).Inc()
}

// RecordRateLimitRejection counts one rejected action.
func RecordRateLimitRejection(kind string) {
	rateLimitRejections.WithLabelValues(kind).Inc()
}

// RecordChallengeVote counts one accepted vote.
func RecordChallengeVote() {
	challengeVotes.Inc()
}

// RecordGeneration counts one generation call by outcome.
func RecordGeneration(status string) {
	generations.WithLabelValues(status).Inc()
}
