package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheRequest("stats", "hit")
		m.ObserveRank("personalized", time.Millisecond)
		m.RankFallback()
		m.SetBreakerState("catalog", 2)
		m.ObserveHTTP("/api/stats", http.MethodGet, "200", time.Millisecond)
		m.ObserveGRPC("/cinelingua.v1.Catalog/Recommend", "OK")
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectorsRecord(t *testing.T) {
	m := New()
	m.CacheRequest("stats", "hit")
	m.CacheRequest("stats", "hit")
	m.CacheRequest("stats", "miss")
	m.RankFallback()
	m.ObserveGRPC("/cinelingua.v1.Catalog/Recommend", "OK")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("stats", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("stats", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rankFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.grpcRequests.WithLabelValues("/cinelingua.v1.Catalog/Recommend", "OK")))

	m.ObserveRank("popularity", 5*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.rankDuration, "cinelingua_rank_duration_seconds"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cinelingua_rank_personalized_fallbacks_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
