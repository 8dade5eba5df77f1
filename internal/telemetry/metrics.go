package telemetry

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog/log"
)

// series metadata shared by Render and the Prometheus collector
const (
	uptimeName       = "uptime_seconds"
	uptimeHelp       = "Uptime of the server in seconds"
	totalName        = "http_requests_total"
	totalHelp        = "Total HTTP requests"
	pathName         = "http_requests_path_total"
	pathHelp         = "Total HTTP requests by path"
	methodStatusName = "http_requests_by_method_status_total"
	methodStatusHelp = "Total HTTP requests by method, path and status"
)

type methodPathStatus struct {
	method string
	path   string
	status int
}

// Registry counts completed HTTP requests.
type Registry struct {
	now func() time.Time

	mu             sync.Mutex
	start          time.Time
	total          uint64
	byPath         map[string]uint64
	byMethodStatus map[methodPathStatus]uint64

	uptimeDesc       *prometheus.Desc
	totalDesc        *prometheus.Desc
	pathDesc         *prometheus.Desc
	methodStatusDesc *prometheus.Desc
}

var _ prometheus.Collector = (*Registry)(nil)

// MetricsOption configures a Registry.
type MetricsOption func(*Registry)

// WithMetricsClock overrides the time source used for uptime.
func WithMetricsClock(fn func() time.Time) MetricsOption {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry creates an empty Registry whose uptime starts now.
func NewRegistry(opts ...MetricsOption) *Registry {
	r := &Registry{
		now:              time.Now,
		byPath:           map[string]uint64{},
		byMethodStatus:   map[methodPathStatus]uint64{},
		uptimeDesc:       prometheus.NewDesc(uptimeName, uptimeHelp, nil, nil),
		totalDesc:        prometheus.NewDesc(totalName, totalHelp, nil, nil),
		pathDesc:         prometheus.NewDesc(pathName, pathHelp, []string{"path"}, nil),
		methodStatusDesc: prometheus.NewDesc(methodStatusName, methodStatusHelp, []string{"method", "path", "status"}, nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.start = r.now()
	return r
}

// Observe records one completed request.
func (r *Registry) Observe(method, path string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	r.byPath[path]++
	r.byMethodStatus[methodPathStatus{method: method, path: path, status: status}]++
}

// Snapshot is the JSON view of the registry.
type Snapshot struct {
	UptimeSeconds          int64             `json:"uptime_seconds"`
	TotalRequests          uint64            `json:"total_requests"`
	RequestsByPath         map[string]uint64 `json:"requests_by_path"`
	RequestsByMethodStatus map[string]uint64 `json:"requests_by_method_status"`
}

// Snapshot copies the current counters. Method/status keys are "METHOD PATH STATUS".
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		UptimeSeconds:          r.uptimeLocked(),
		TotalRequests:          r.total,
		RequestsByPath:         make(map[string]uint64, len(r.byPath)),
		RequestsByMethodStatus: make(map[string]uint64, len(r.byMethodStatus)),
	}
	for p, c := range r.byPath {
		s.RequestsByPath[p] = c
	}
	for k, c := range r.byMethodStatus {
		s.RequestsByMethodStatus[k.method+" "+k.path+" "+strconv.Itoa(k.status)] = c
	}
	return s
}

// Uptime returns whole seconds since the registry was created or reset.
func (r *Registry) Uptime() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uptimeLocked()
}

func (r *Registry) uptimeLocked() int64 {
	return int64(r.now().Sub(r.start) / time.Second)
}

// Reset zeroes every counter and restarts uptime.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = 0
	clear(r.byPath)
	clear(r.byMethodStatus)
	r.start = r.now()
}

// Render writes the counters in Prometheus text exposition format.
// Gather sorts families and samples, so equal counters render to identical bytes.
func (r *Registry) Render() string {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(r); err != nil {
		log.Error().Str("logger", "metrics").Err(err).Msg("registering counters")
		return ""
	}
	families, err := reg.Gather()
	if err != nil {
		log.Error().Str("logger", "metrics").Err(err).Msg("gathering counters")
	}

	var b strings.Builder
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
			log.Error().Str("logger", "metrics").Err(err).Str("family", mf.GetName()).Msg("rendering counters")
		}
	}
	return b.String()
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.uptimeDesc
	ch <- r.totalDesc
	ch <- r.pathDesc
	ch <- r.methodStatusDesc
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch <- prometheus.MustNewConstMetric(r.uptimeDesc, prometheus.GaugeValue, float64(r.uptimeLocked()))
	ch <- prometheus.MustNewConstMetric(r.totalDesc, prometheus.CounterValue, float64(r.total))
	for p, c := range r.byPath {
		ch <- prometheus.MustNewConstMetric(r.pathDesc, prometheus.CounterValue, float64(c), p)
	}
	for k, c := range r.byMethodStatus {
		ch <- prometheus.MustNewConstMetric(r.methodStatusDesc, prometheus.CounterValue, float64(c),
			k.method, k.path, strconv.Itoa(k.status))
	}
}
