package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed.",
		},
		[]string{"method", "group", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "travel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "group", "status"},
	)
)

func init() {
	prometheus.MustRegister(requestCount, requestDuration)
}

// routeGroup keeps label cardinality bounded by the top-level prefixes.
func routeGroup(path string) string {
	switch {
	case strings.HasPrefix(path, "/admin"):
		return "admin"
	case strings.HasPrefix(path, "/api"):
		return "api"
	case strings.HasPrefix(path, "/swagger"):
		return "swagger"
	case strings.HasPrefix(path, "/static"):
		return "static"
	case path == "/healthz", path == "/metrics":
		return strings.TrimPrefix(path, "/")
	default:
		return "other"
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"group":  routeGroup(r.URL.Path),
			"status": strconv.Itoa(rec.status),
		}
		requestCount.With(labels).Inc()
		requestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}
