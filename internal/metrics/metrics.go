// cinelingua-service/internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics содержит коллекторы сервиса в собственном реестре.
// nil *Metrics допустим и ничего не записывает.
type Metrics struct {
	Registry *prometheus.Registry

	cacheRequests *prometheus.CounterVec
	rankDuration  *prometheus.HistogramVec
	rankFallbacks prometheus.Counter
	breakerState  *prometheus.GaugeVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	grpcRequests  *prometheus.CounterVec
}

// New создает и регистрирует все коллекторы.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinelingua_cache_requests_total",
				Help: "Aggregate cache lookups by namespace and result (hit, miss, bypass)",
			},
			[]string{"namespace", "result"},
		),
		rankDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cinelingua_rank_duration_seconds",
				Help:    "Time spent producing a ranked result, by applied sort mode",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		rankFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cinelingua_rank_personalized_fallbacks_total",
				Help: "Personalized requests served in popularity order for lack of a profile",
			},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cinelingua_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinelingua_http_requests_total",
				Help: "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cinelingua_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		grpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinelingua_grpc_requests_total",
				Help: "gRPC requests by method and status code",
			},
			[]string{"method", "code"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheRequests,
		m.rankDuration,
		m.rankFallbacks,
		m.breakerState,
		m.httpRequests,
		m.httpDuration,
		m.grpcRequests,
	)
	return m
}

// Handler отдает реестр для сбора метрик.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// CacheRequest учитывает одно обращение к кэшу.
func (m *Metrics) CacheRequest(namespace, result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(namespace, result).Inc()
}

// ObserveRank записывает длительность ранжирования.
func (m *Metrics) ObserveRank(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.rankDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RankFallback учитывает персональный запрос, откатившийся к популярности.
func (m *Metrics) RankFallback() {
	if m == nil {
		return
	}
	m.rankFallbacks.Inc()
}

// SetBreakerState публикует состояние breaker как 0, 1 или 2.
func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}

// ObserveHTTP записывает один обработанный HTTP запрос.
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// TrackCacheEntries публикует число записей кэша как gauge.
// Экспортируется только первый кэш, зарегистрированный в реестре.
func (m *Metrics) TrackCacheEntries(entries func() float64) {
	if m == nil {
		return
	}
	_ = m.Registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "cinelingua_cache_entries",
			Help: "Entries held by the aggregate cache, expired ones included",
		},
		entries,
	))
}

// ObserveGRPC записывает один обработанный gRPC вызов.
func (m *Metrics) ObserveGRPC(method, code string) {
	if m == nil {
		return
	}
	m.grpcRequests.WithLabelValues(method, code).Inc()
}
