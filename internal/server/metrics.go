package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the backend's Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	Revision            prometheus.Gauge
	Items               prometheus.Gauge
	RevisionConflicts   prometheus.Counter
	InjectedFailures    prometheus.Counter
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	f := promauto.With(registerer)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tada_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tada_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		Revision: f.NewGauge(prometheus.GaugeOpts{
			Name: "tada_list_revision",
			Help: "Current list revision",
		}),
		Items: f.NewGauge(prometheus.GaugeOpts{
			Name: "tada_list_items",
			Help: "Number of items in the list",
		}),
		RevisionConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "tada_revision_conflicts_total",
			Help: "Mutations rejected for a stale revision",
		}),
		InjectedFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tada_injected_failures_total",
			Help: "Requests failed on purpose via X-Generate-Fails",
		}),
	}
}

// middleware records request counts and latency by route template.
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
