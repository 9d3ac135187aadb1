package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelingua-service/internal/domain"
	"cinelingua-service/internal/filter"
)

func ptr[T any](v T) *T { return &v }

func seededStore() *MockCatalogStore {
	return NewMockCatalogStore(nil,
		domain.Movie{ID: "1", OriginalLanguage: "fr", Genres: []string{"drama"}, VoteAverage: ptr(7.5), Popularity: ptr(30.0), ReleaseYear: ptr(1999), LinguisticLevel: ptr("b1"), PosterPath: ptr("/p1.jpg")},
		domain.Movie{ID: "2", OriginalLanguage: "en", Genres: []string{"drama"}, VoteAverage: ptr(8.0), Popularity: ptr(50.0), ReleaseYear: ptr(2010), LinguisticLevel: ptr("c1"), LinguisticRegister: ptr("formal")},
		domain.Movie{ID: "3", OriginalLanguage: "fr", Genres: []string{"comedy", "drama"}, VoteAverage: ptr(6.0), Popularity: ptr(70.0), ReleaseYear: ptr(1850), PosterPath: ptr("/p3.jpg")},
		domain.Movie{ID: "4", OriginalLanguage: "fr", Genres: []string{"horror"}, Popularity: ptr(10.0), PosterPath: ptr("/p4.jpg")},
	)
}

func TestMockQueryFiltersAndPages(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	// fr + drama + min_rating 7.0: подходит только фильм 1.
	movies, total, err := s.Query(ctx, filter.Spec{Language: "fr", Genres: []string{"drama"}, MinRating: ptr(7.0)}, domain.SortPopularity, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, movies, 1)
	assert.Equal(t, "1", movies[0].ID)

	movies, total, err = s.Query(ctx, filter.Spec{Language: "fr"}, domain.SortPopularity, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"1", "4"}, []string{movies[0].ID, movies[1].ID})

	movies, total, err = s.Query(ctx, filter.Spec{Language: "fr"}, domain.SortPopularity, 2, 9)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, movies)

	movies, _, err = s.Query(ctx, filter.Spec{Language: "fr"}, domain.SortNewest, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, "4", movies[2].ID, "unknown years sort last")
}

func TestMockReturnsCopies(t *testing.T) {
	s := seededStore()
	m, err := s.GetByID(context.Background(), "1")
	require.NoError(t, err)
	m.Genres[0] = "changed"

	again, err := s.GetByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "drama", again.Genres[0])

	_, err = s.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMovieNotFound)
}

func TestMockGetByIDsSkipsUnknown(t *testing.T) {
	movies, err := seededStore().GetByIDs(context.Background(), []string{"2", "x", "3"})
	require.NoError(t, err)
	assert.Len(t, movies, 2)
}

func TestMockDistinct(t *testing.T) {
	s := seededStore()
	s.Add(domain.Movie{ID: "5", OriginalLanguage: "nan"})
	ctx := context.Background()

	langs, err := s.DistinctLanguages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "fr"}, langs)

	levels, err := s.DistinctLinguisticLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "c1"}, levels)

	registers, err := s.DistinctLinguisticRegisters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"formal"}, registers)

	genres, err := s.DistinctGenresForLanguage(ctx, "fr")
	require.NoError(t, err)
	assert.Equal(t, []string{"comedy", "drama", "horror"}, genres)

	none, err := s.DistinctGenresForLanguage(ctx, "de")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMockPopularPoolWithPoster(t *testing.T) {
	pool, err := seededStore().PopularPoolWithPoster(context.Background(), 10, 6.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, []string{pool[0].ID, pool[1].ID})
	assert.Len(t, pool, 2, "unrated and posterless movies are excluded")
}

func TestMockStats(t *testing.T) {
	stats, err := seededStore().Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalMovies)
	assert.Equal(t, []domain.LabelCount{{Label: "fr", Value: 3}, {Label: "en", Value: 1}}, stats.LanguagesTop)
	assert.Equal(t, domain.LabelCount{Label: "drama", Value: 3}, stats.GenresTop[0])
	assert.Equal(t, []domain.LabelCount{{Label: "1999", Value: 1}, {Label: "2010", Value: 1}}, stats.YearsDistribution, "years before 1900 are not counted")

	empty, err := NewMockCatalogStore(nil).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyStats(), empty)
}

func TestLastN(t *testing.T) {
	assert.Equal(t, []int{3, 4}, lastN([]int{1, 2, 3, 4}, 2))
	assert.Equal(t, []int{1}, lastN([]int{1}, 50))
}
