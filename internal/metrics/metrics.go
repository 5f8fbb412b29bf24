package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	notifyCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplier_notify_total",
			Help: "Total number of supplier webhook notifications by outcome",
		},
		[]string{"outcome"},
	)

	orderNoRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_no_allocation_retries_total",
			Help: "Total number of order number allocation retries",
		},
	)
)

func init() {
	prometheus.MustRegister(requestCounter, requestDuration, notifyCounter, orderNoRetries)
}

// Middleware 记录HTTP请求计数与耗时
// path使用路由模板而非原始URL，避免标签基数爆炸
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		requestCounter.WithLabelValues(c.Request.Method, path, status).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露 /metrics
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// ObserveNotify 记录一次webhook通知结果
func ObserveNotify(outcome string) {
	notifyCounter.WithLabelValues(outcome).Inc()
}

// ObserveOrderNoRetry 记录一次订单号分配重试
func ObserveOrderNoRetry() {
	orderNoRetries.Inc()
}
