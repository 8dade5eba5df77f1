package api

import (
	"net/http"
	"time"

	"github.com/org/authcore/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// httpMetrics couples the request counters with a private Prometheus registry.
type httpMetrics struct {
	counters *telemetry.Registry
	registry *prometheus.Registry
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(counters *telemetry.Registry) *httpMetrics {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		counters,
		duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &httpMetrics{counters: counters, registry: reg, duration: duration}
}

// handler serves the full registry, runtime collectors included.
func (m *httpMetrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware counts every completed request, rejected ones included.
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := newRecorder(w)
		next.ServeHTTP(rr, r)

		m.counters.Observe(r.Method, r.URL.Path, rr.statusCode)
		m.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
