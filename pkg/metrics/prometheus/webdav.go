// Package prometheus implements the metrics interfaces on top of the
// registry owned by pkg/metrics.
package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// webdavMetrics is the Prometheus implementation of metrics.WebDAVMetrics.
type webdavMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesTransferred *prometheus.CounterVec
	rateLimited      prometheus.Counter
}

// NewWebDAVMetrics creates a Prometheus-backed WebDAVMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewWebDAVMetrics() metrics.WebDAVMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopWebDAVMetrics()
	}

	reg := metrics.GetRegistry()

	return &webdavMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_webdav_requests_total",
				Help: "Total number of WebDAV requests by method, share, and status code",
			},
			[]string{"method", "share", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodav_webdav_request_duration_milliseconds",
				Help: "Duration of WebDAV requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"method", "share"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittodav_webdav_requests_in_flight",
				Help: "Current number of WebDAV requests being processed",
			},
			[]string{"method"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_webdav_bytes_transferred_total",
				Help: "Total body bytes transferred by GET and PUT",
			},
			[]string{"direction"},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodav_webdav_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

func (m *webdavMetrics) RecordRequest(method, share string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, share, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, share).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *webdavMetrics) RecordRequestStart(method string) {
	m.requestsInFlight.WithLabelValues(method).Inc()
}

func (m *webdavMetrics) RecordRequestEnd(method string) {
	m.requestsInFlight.WithLabelValues(method).Dec()
}

func (m *webdavMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *webdavMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}
