// cinelingua-service/internal/store/movie_store.go
package store

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"
)

var (
	ErrMovieNotFound      = errors.New("movie not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Ограничения для агрегатов статистики.
const (
	statsLanguagesTop = 20
	statsLevelsTop    = 12
	statsGenresTop    = 25
	statsYearMin      = 1900
	statsYearMax      = 2025
	statsYearBuckets  = 50
)

// CatalogStore - сторона чтения каталога фильмов. Реализации возвращают
// полностью нормализованные фильмы (см. domain.Movie), без частично заполненных записей.
type CatalogStore interface {
	// Query возвращает страницу фильмов, подходящих под spec, в заданном порядке
	// и общее число совпадений.
	Query(ctx context.Context, spec filter.Spec, order domain.SortMode, limit, offset int) ([]domain.Movie, int, error)
	Count(ctx context.Context, spec filter.Spec) (int, error)
	GetByID(ctx context.Context, id string) (*domain.Movie, error)
	// GetByIDs получает фильмы пачкой; порядок не определен, неизвестные ID
	// пропускаются.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error)
	DistinctLanguages(ctx context.Context) ([]string, error)
	DistinctLinguisticLevels(ctx context.Context) ([]string, error)
	DistinctLinguisticRegisters(ctx context.Context) ([]string, error)
	DistinctGenresForLanguage(ctx context.Context, lang string) ([]string, error)
	// PopularPoolWithPoster возвращает до limit фильмов с постером и рейтингом
	// не ниже minRating, самые популярные первыми.
	PopularPoolWithPoster(ctx context.Context, limit int, minRating float64) ([]domain.Movie, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// MockCatalogStore - CatalogStore в памяти для тестов и драйвера "memory".
type MockCatalogStore struct {
	mu     sync.RWMutex
	movies map[string]domain.Movie
	logger *slog.Logger
}

// NewMockCatalogStore создает хранилище, заполненное movies.
func NewMockCatalogStore(logger *slog.Logger, movies ...domain.Movie) *MockCatalogStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &MockCatalogStore{movies: make(map[string]domain.Movie, len(movies)), logger: logger}
	for _, movie := range movies {
		m.movies[movie.ID] = cloneMovie(movie)
	}
	return m
}

// Add добавляет или заменяет фильм.
func (m *MockCatalogStore) Add(movie domain.Movie) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movies[movie.ID] = cloneMovie(movie)
}

// snapshot возвращает копии всех фильмов, упорядоченные по ID, чтобы результаты были стабильны.
func (m *MockCatalogStore) snapshot() []domain.Movie {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Movie, 0, len(m.movies))
	for _, movie := range m.movies {
		out = append(out, cloneMovie(movie))
	}
	slices.SortFunc(out, func(a, b domain.Movie) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (m *MockCatalogStore) Query(ctx context.Context, spec filter.Spec, order domain.SortMode, limit, offset int) ([]domain.Movie, int, error) {
	m.logger.DebugContext(ctx, "[MOCK STORE] Query", slog.String("lang", spec.Language), slog.String("order", string(order)))
	var matched []domain.Movie
	for _, movie := range m.snapshot() {
		if spec.Matches(movie) {
			matched = append(matched, movie)
		}
	}
	slices.SortStableFunc(matched, orderFunc(order))

	total := len(matched)
	start := max(0, offset)
	if start >= total {
		return []domain.Movie{}, total, nil
	}
	end := min(total, start+max(0, limit))
	return matched[start:end], total, nil
}

func (m *MockCatalogStore) Count(ctx context.Context, spec filter.Spec) (int, error) {
	_, total, err := m.Query(ctx, spec, domain.SortPopularity, 0, 0)
	return total, err
}

func (m *MockCatalogStore) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.logger.DebugContext(ctx, "[MOCK STORE] GetByID", slog.String("movieID", id))
	movie, ok := m.movies[id]
	if !ok {
		return nil, ErrMovieNotFound
	}
	c := cloneMovie(movie)
	return &c, nil
}

func (m *MockCatalogStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Movie, 0, len(ids))
	for _, id := range ids {
		if movie, ok := m.movies[id]; ok {
			out = append(out, cloneMovie(movie))
		}
	}
	return out, nil
}

func (m *MockCatalogStore) DistinctLanguages(ctx context.Context) ([]string, error) {
	return m.distinct(func(movie domain.Movie) []string { return []string{movie.OriginalLanguage} }), nil
}

func (m *MockCatalogStore) DistinctLinguisticLevels(ctx context.Context) ([]string, error) {
	return m.distinct(func(movie domain.Movie) []string { return deref(movie.LinguisticLevel) }), nil
}

func (m *MockCatalogStore) DistinctLinguisticRegisters(ctx context.Context) ([]string, error) {
	return m.distinct(func(movie domain.Movie) []string { return deref(movie.LinguisticRegister) }), nil
}

func (m *MockCatalogStore) DistinctGenresForLanguage(ctx context.Context, lang string) ([]string, error) {
	return m.distinct(func(movie domain.Movie) []string {
		if movie.OriginalLanguage != lang {
			return nil
		}
		return movie.Genres
	}), nil
}

func (m *MockCatalogStore) distinct(values func(domain.Movie) []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, movie := range m.snapshot() {
		for _, v := range values(movie) {
			if v == "" || v == "nan" {
				continue
			}
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	slices.Sort(out)
	return out
}

func (m *MockCatalogStore) PopularPoolWithPoster(ctx context.Context, limit int, minRating float64) ([]domain.Movie, error) {
	var pool []domain.Movie
	for _, movie := range m.snapshot() {
		if movie.HasPoster() && movie.VoteAverage != nil && *movie.VoteAverage >= minRating {
			pool = append(pool, movie)
		}
	}
	slices.SortStableFunc(pool, orderFunc(domain.SortPopularity))
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

func (m *MockCatalogStore) Stats(ctx context.Context) (domain.Stats, error) {
	movies := m.snapshot()
	stats := domain.EmptyStats()
	stats.TotalMovies = len(movies)
	if len(movies) == 0 {
		return stats, nil
	}

	languages := map[string]int{}
	levels := map[string]int{}
	genres := map[string]int{}
	years := map[int]int{}
	for _, movie := range movies {
		if movie.OriginalLanguage != "" {
			languages[movie.OriginalLanguage]++
		}
		if movie.LinguisticLevel != nil {
			levels[*movie.LinguisticLevel]++
		}
		for _, g := range movie.Genres {
			genres[g]++
		}
		if movie.ReleaseYear != nil && *movie.ReleaseYear >= statsYearMin && *movie.ReleaseYear <= statsYearMax {
			years[*movie.ReleaseYear]++
		}
	}
	stats.LanguagesTop = topCounts(languages, statsLanguagesTop)
	stats.LevelsTop = topCounts(levels, statsLevelsTop)
	stats.GenresTop = topCounts(genres, statsGenresTop)

	keys := make([]int, 0, len(years))
	for y := range years {
		keys = append(keys, y)
	}
	slices.Sort(keys)
	for _, y := range keys {
		stats.YearsDistribution = append(stats.YearsDistribution, domain.LabelCount{Label: strconv.Itoa(y), Value: years[y]})
	}
	stats.YearsDistribution = lastN(stats.YearsDistribution, statsYearBuckets)
	return stats, nil
}

// orderFunc возвращает функцию сравнения для режима сортировки. При равенстве
// сравниваются ID, чтобы мок был детерминирован.
func orderFunc(order domain.SortMode) func(a, b domain.Movie) int {
	return func(a, b domain.Movie) int {
		var c int
		switch order {
		case domain.SortRating:
			c = cmp.Compare(ptrOr(b.VoteAverage, -1), ptrOr(a.VoteAverage, -1))
		case domain.SortNewest:
			c = compareYears(a, b, true)
		case domain.SortOldest:
			c = compareYears(a, b, false)
		}
		if c == 0 {
			c = cmp.Compare(b.PopularityOrZero(), a.PopularityOrZero())
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	}
}

// compareYears сортирует по году выхода, неизвестные годы в конце.
func compareYears(a, b domain.Movie, newestFirst bool) int {
	switch {
	case a.ReleaseYear == nil && b.ReleaseYear == nil:
		return 0
	case a.ReleaseYear == nil:
		return 1
	case b.ReleaseYear == nil:
		return -1
	case newestFirst:
		return cmp.Compare(*b.ReleaseYear, *a.ReleaseYear)
	default:
		return cmp.Compare(*a.ReleaseYear, *b.ReleaseYear)
	}
}

func topCounts(counts map[string]int, n int) []domain.LabelCount {
	out := make([]domain.LabelCount, 0, len(counts))
	for label, value := range counts {
		out = append(out, domain.LabelCount{Label: label, Value: value})
	}
	slices.SortFunc(out, func(a, b domain.LabelCount) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func lastN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

func ptrOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func deref(s *string) []string {
	if s == nil {
		return nil
	}
	return []string{*s}
}

func cloneMovie(m domain.Movie) domain.Movie {
	m.Genres = slices.Clone(m.Genres)
	return m
}
