package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "energy",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "energy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "energy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	sessionLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "energy",
			Subsystem: "session_cache",
			Name:      "lookups_total",
			Help:      "Session cache lookups on login by result.",
		},
		[]string{"result"},
	)

	aggregationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "energy",
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Aggregation job runs by trigger and outcome.",
		},
		[]string{"trigger", "success"},
	)

	aggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "energy",
			Subsystem: "aggregation",
			Name:      "run_duration_seconds",
			Help:      "Duration of aggregation job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	aggregationBudgets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "energy",
			Subsystem: "aggregation",
			Name:      "budgets_total",
			Help:      "Budgets processed by the aggregation job by result.",
		},
		[]string{"result"},
	)

	alertsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "energy",
			Subsystem: "alerts",
			Name:      "created_total",
			Help:      "Alerts created, manual and budget overruns.",
		},
	)

	usageUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "energy",
			Subsystem: "devices",
			Name:      "usage_updates_total",
			Help:      "Device energy usage updates by result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		sessionLookups,
		aggregationRuns,
		aggregationDuration,
		aggregationBudgets,
		alertsCreated,
		usageUpdates,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency keyed by the matched route.
func GinMiddleware() gin.HandlerFunc {
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
		method := strings.ToUpper(c.Request.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordSessionLookup counts a login-time session cache lookup.
func RecordSessionLookup(hit bool) {
	if hit {
		sessionLookups.WithLabelValues("hit").Inc()
		return
	}
	sessionLookups.WithLabelValues("miss").Inc()
}

// RecordAggregationRun records one aggregation job run.
func RecordAggregationRun(trigger string, duration time.Duration, processed, failed int, success bool) {
	if trigger == "" {
		trigger = "unknown"
	}
	aggregationRuns.WithLabelValues(trigger, strconv.FormatBool(success)).Inc()
	aggregationDuration.Observe(duration.Seconds())
	aggregationBudgets.WithLabelValues("ok").Add(float64(processed))
	aggregationBudgets.WithLabelValues("failed").Add(float64(failed))
}

func RecordAlertCreated() {
	alertsCreated.Inc()
}

func RecordUsageUpdate(result string) {
	usageUpdates.WithLabelValues(result).Inc()
}
