package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/v1/expenses", 200, 5*time.Millisecond)
	m.ObserveRequest("GET", "/api/v1/expenses", 200, 7*time.Millisecond)
	m.ObserveRequest("POST", "/api/v1/expenses", 400, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/expenses", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/expenses", "400")))
}

func TestCacheAndEventCounters(t *testing.T) {
	m := New()
	observe := m.CacheObserver("top_days")
	observe(true)
	observe(false)
	observe(false)
	m.CachePurged()
	m.EventPublished("expense.created", nil)
	m.EventPublished("expense.created", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("top_days", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("top_days", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cachePurges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("expense.created", "failure")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", 200, time.Millisecond)
		m.CachePurged()
		m.EventPublished("x", nil)
		assert.Nil(t, m.CacheObserver("x"))
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `expenses_http_requests_total{method="GET",route="/health",status="200"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
