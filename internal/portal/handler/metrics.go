package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cfItemsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campusfound_items_total",
		Help: "Total number of postings by status.",
	}, []string{"status"})

	cfRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfound_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	cfRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campusfound_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	cfClaimAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfound_claim_attempts_total",
		Help: "Claim verification attempts by outcome.",
	}, []string{"outcome"})

	cfMatchSearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusfound_match_searches_total",
		Help: "Interactive match searches served.",
	})

	cfNotifyDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfound_notify_deliveries_total",
		Help: "Webhook deliveries by success status.",
	}, []string{"status"})

	cfProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfound_collaborator_probes_total",
		Help: "Collaborator health probes by collaborator and result.",
	}, []string{"collaborator", "result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		cfRequestsTotal.WithLabelValues(method, path, status).Inc()
		cfRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordClaimAttempt records the outcome of a claim verify call.
func RecordClaimAttempt(outcome string) {
	cfClaimAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordMatchSearch records one interactive match search.
func RecordMatchSearch() {
	cfMatchSearchesTotal.Inc()
}

// RecordNotifyDelivery records a webhook delivery attempt.
func RecordNotifyDelivery(success bool) {
	if success {
		cfNotifyDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		cfNotifyDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordProbe records a collaborator health probe result.
func RecordProbe(collaborator string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	cfProbesTotal.WithLabelValues(collaborator, result).Inc()
}

// SetItemsGauge sets the posting count gauge for a given status.
func SetItemsGauge(status string, count float64) {
	cfItemsTotal.WithLabelValues(status).Set(count)
}
