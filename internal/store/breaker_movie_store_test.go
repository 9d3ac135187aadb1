package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"
	"cinelingua-service/internal/metrics"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// flakyStore ломает DistinctLanguages, пока выставлен down.
type flakyStore struct {
	*MockCatalogStore
	down  bool
	calls int
}

func (f *flakyStore) DistinctLanguages(ctx context.Context) ([]string, error) {
	f.calls++
	if f.down {
		return nil, errors.New("connection refused")
	}
	return f.MockCatalogStore.DistinctLanguages(ctx)
}

func testBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "catalog",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}
}

func TestBreakerOpensAndFailsFast(t *testing.T) {
	next := &flakyStore{MockCatalogStore: seededStore(), down: true}
	m := metrics.New()
	b := NewBreakerCatalogStore(next, testBreakerSettings(), discardLogger(), m)
	ctx := context.Background()

	for range 2 {
		_, err := b.DistinctLanguages(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCatalogUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.DistinctLanguages(ctx)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls, "an open breaker does not reach the store")

	expected := `
# HELP cinelingua_circuit_breaker_state Circuit breaker state (0=closed, 1=half-open, 2=open)
# TYPE cinelingua_circuit_breaker_state gauge
cinelingua_circuit_breaker_state{name="catalog"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "cinelingua_circuit_breaker_state"))
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	b := NewBreakerCatalogStore(seededStore(), testBreakerSettings(), discardLogger(), nil)
	ctx := context.Background()

	for range 5 {
		_, err := b.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ErrMovieNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	movie, err := b.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", movie.ID)
}

func TestBreakerPassesResultsThrough(t *testing.T) {
	b := NewBreakerCatalogStore(seededStore(), testBreakerSettings(), discardLogger(), nil)
	ctx := context.Background()

	movies, total, err := b.Query(ctx, filter.Spec{Language: "fr", Limit: 20}, domain.SortPopularity, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, movies, 2)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalMovies)
}
