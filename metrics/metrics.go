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
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskserver_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	taskOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskserver_task_operations_total",
			Help: "Task store operations by surface, operation and outcome code",
		},
		[]string{"surface", "op", "code"},
	)
	openSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskserver_open_sessions",
			Help: "Persistent session channels currently open",
		},
	)
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskserver_auth_attempts_total",
			Help: "Register/login attempts by event and outcome",
		},
		[]string{"event", "success"},
	)
)

// Middleware records request duration keyed by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RecordTaskOp counts one store call. code is "OK" or an apperr code.
func RecordTaskOp(surface, op, code string) {
	taskOperations.WithLabelValues(surface, op, code).Inc()
}

func SessionOpened() { openSessions.Inc() }

func SessionClosed() { openSessions.Dec() }

func RecordAuthAttempt(event string, success bool) {
	authAttempts.WithLabelValues(event, strconv.FormatBool(success)).Inc()
}
