package telemetry

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RenderSingleRequest(t *testing.T) {
	r := NewRegistry()
	r.Observe("GET", "/x", 200)

	out := r.Render()
	lines := strings.Split(out, "\n")
	assert.Contains(t, lines, `http_requests_path_total{path="/x"} 1`)
	assert.Contains(t, lines, `http_requests_by_method_status_total{method="GET",path="/x",status="200"} 1`)
	assert.Contains(t, lines, `http_requests_total 1`)
	assert.Contains(t, lines, `# HELP uptime_seconds Uptime of the server in seconds`)
	assert.Contains(t, lines, `# TYPE uptime_seconds gauge`)
	assert.Contains(t, lines, `# TYPE http_requests_by_method_status_total counter`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRegistry_RenderIsStable(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(WithMetricsClock(func() time.Time { return now }))
	for _, p := range []string{"/b", "/a", "/c", "/a"} {
		r.Observe("GET", p, 200)
		r.Observe("POST", p, 401)
	}

	first := r.Render()
	for i := 0; i < 20; i++ {
		require.Equal(t, first, r.Render())
	}
	a := strings.Index(first, `path_total{path="/a"}`)
	b := strings.Index(first, `path_total{path="/b"}`)
	c := strings.Index(first, `path_total{path="/c"}`)
	assert.True(t, a < b && b < c, "paths are rendered in sorted order")
	assert.Contains(t, first, `http_requests_path_total{path="/a"} 4`)
}

func TestRegistry_EscapesLabels(t *testing.T) {
	r := NewRegistry()
	r.Observe("GET", "/q\"uote\\d", 404)
	assert.Contains(t, r.Render(), `http_requests_path_total{path="/q\"uote\\d"} 1`)
}

func TestRegistry_Snapshot(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := NewRegistry(WithMetricsClock(clock))
	r.Observe("GET", "/x", 200)
	r.Observe("GET", "/x", 200)
	r.Observe("POST", "/y", 429)
	now = now.Add(90*time.Second + 500*time.Millisecond)

	s := r.Snapshot()
	assert.Equal(t, int64(90), s.UptimeSeconds)
	assert.Equal(t, uint64(3), s.TotalRequests)
	assert.Equal(t, map[string]uint64{"/x": 2, "/y": 1}, s.RequestsByPath)
	assert.Equal(t, map[string]uint64{"GET /x 200": 2, "POST /y 429": 1}, s.RequestsByMethodStatus)

	// the snapshot is detached from the registry
	s.RequestsByPath["/x"] = 100
	assert.Equal(t, uint64(2), r.Snapshot().RequestsByPath["/x"])
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	r.Observe("GET", "/x", 200)
	r.Reset()

	s := r.Snapshot()
	assert.Zero(t, s.TotalRequests)
	assert.Empty(t, s.RequestsByPath)
	assert.NotContains(t, r.Render(), `path="/x"`)
}

func TestRegistry_ConcurrentObserve(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Observe("GET", "/x", 200)
			}
		}()
	}
	wg.Wait()
	s := r.Snapshot()
	assert.Equal(t, uint64(2000), s.TotalRequests)
	assert.Equal(t, uint64(2000), s.RequestsByMethodStatus["GET /x 200"])
}

func TestRegistry_Collector(t *testing.T) {
	r := NewRegistry()
	r.Observe("GET", "/x", 200)
	r.Observe("GET", "/x", 500)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(r))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]int{}
	for _, mf := range families {
		byName[mf.GetName()] = len(mf.GetMetric())
	}
	assert.Equal(t, 1, byName[uptimeName])
	assert.Equal(t, 1, byName[totalName])
	assert.Equal(t, 1, byName[pathName])
	assert.Equal(t, 2, byName[methodStatusName])

	for _, mf := range families {
		if mf.GetName() == totalName {
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
