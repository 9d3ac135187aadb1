// cinelingua-service/internal/store/breaker_movie_store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"
	"cinelingua-service/internal/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings настраивает BreakerCatalogStore.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// BreakerCatalogStore оборачивает CatalogStore в circuit breaker. Пока цепь
// разомкнута, вызовы сразу завершаются ErrCatalogUnavailable, не дожидаясь
// перегруженной базы. Повторов нет.
type BreakerCatalogStore struct {
	next   CatalogStore
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

// NewBreakerCatalogStore оборачивает next.
func NewBreakerCatalogStore(next CatalogStore, settings BreakerSettings, logger *slog.Logger, m *metrics.Metrics) *BreakerCatalogStore {
	if settings.Name == "" {
		settings.Name = "catalog"
	}
	m.SetBreakerState(settings.Name, 0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Catalog circuit breaker state change",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
			m.SetBreakerState(name, stateValue(to))
		},
		// Пустой результат поиска и ушедший вызывающий ничего не говорят
		// о здоровье базы.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrMovieNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})
	return &BreakerCatalogStore{next: next, cb: cb, logger: logger}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State возвращает текущее состояние breaker.
func (b *BreakerCatalogStore) State() gobreaker.State { return b.cb.State() }

func guarded[T any](b *BreakerCatalogStore, fn func() (T, error)) (T, error) {
	var zero T
	v, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
		}
		return zero, err
	}
	return v.(T), nil
}

type page struct {
	movies []domain.Movie
	total  int
}

func (b *BreakerCatalogStore) Query(ctx context.Context, spec filter.Spec, order domain.SortMode, limit, offset int) ([]domain.Movie, int, error) {
	p, err := guarded(b, func() (page, error) {
		movies, total, err := b.next.Query(ctx, spec, order, limit, offset)
		return page{movies: movies, total: total}, err
	})
	return p.movies, p.total, err
}

func (b *BreakerCatalogStore) Count(ctx context.Context, spec filter.Spec) (int, error) {
	return guarded(b, func() (int, error) { return b.next.Count(ctx, spec) })
}

func (b *BreakerCatalogStore) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	return guarded(b, func() (*domain.Movie, error) { return b.next.GetByID(ctx, id) })
}

func (b *BreakerCatalogStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	return guarded(b, func() ([]domain.Movie, error) { return b.next.GetByIDs(ctx, ids) })
}

func (b *BreakerCatalogStore) DistinctLanguages(ctx context.Context) ([]string, error) {
	return guarded(b, func() ([]string, error) { return b.next.DistinctLanguages(ctx) })
}

func (b *BreakerCatalogStore) DistinctLinguisticLevels(ctx context.Context) ([]string, error) {
	return guarded(b, func() ([]string, error) { return b.next.DistinctLinguisticLevels(ctx) })
}

func (b *BreakerCatalogStore) DistinctLinguisticRegisters(ctx context.Context) ([]string, error) {
	return guarded(b, func() ([]string, error) { return b.next.DistinctLinguisticRegisters(ctx) })
}

func (b *BreakerCatalogStore) DistinctGenresForLanguage(ctx context.Context, lang string) ([]string, error) {
	return guarded(b, func() ([]string, error) { return b.next.DistinctGenresForLanguage(ctx, lang) })
}

func (b *BreakerCatalogStore) PopularPoolWithPoster(ctx context.Context, limit int, minRating float64) ([]domain.Movie, error) {
	return guarded(b, func() ([]domain.Movie, error) { return b.next.PopularPoolWithPoster(ctx, limit, minRating) })
}

func (b *BreakerCatalogStore) Stats(ctx context.Context) (domain.Stats, error) {
	return guarded(b, func() (domain.Stats, error) { return b.next.Stats(ctx) })
}
