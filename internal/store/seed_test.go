package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `[
  {"id": 238, "title": "The Godfather", "release_date": "1972-03-14", "original_language": "EN",
   "genres": ["Drama", " Crime "], "runtime": 175, "popularity": 90.5, "vote_average": 8.7,
   "poster_path": "/godfather.jpg", "linguistic_level": " C1 "},
  {"id": "19404", "title": "  ", "release_date": "0001-01-01", "original_language": "hi",
   "genres": [], "linguistic_register": "nan"},
  {"title": "no id"}
]`

func TestLoadJSONNormalisesRecords(t *testing.T) {
	s := NewMockCatalogStore(discardLogger())

	n, err := s.LoadJSON(strings.NewReader(seedJSON), "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ctx := context.Background()
	godfather, err := s.GetByID(ctx, "238")
	require.NoError(t, err)
	assert.Equal(t, "en", godfather.OriginalLanguage)
	assert.Equal(t, []string{"drama", "crime"}, godfather.Genres)
	require.NotNil(t, godfather.ReleaseYear)
	assert.Equal(t, 1972, *godfather.ReleaseYear)
	require.NotNil(t, godfather.PosterURL)
	assert.Equal(t, DefaultImageBase+"/godfather.jpg", *godfather.PosterURL)
	require.NotNil(t, godfather.LinguisticLevel)
	assert.Equal(t, "c1", *godfather.LinguisticLevel)

	other, err := s.GetByID(ctx, "19404")
	require.NoError(t, err)
	assert.Equal(t, "Unknown title", other.Title)
	assert.Nil(t, other.ReleaseYear, "year 0001 is outside the plausible range")
	assert.Nil(t, other.LinguisticRegister)

	langs, err := s.DistinctLanguages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "hi"}, langs)
}

func TestLoadJSONRejectsBrokenInput(t *testing.T) {
	s := NewMockCatalogStore(discardLogger())
	_, err := s.LoadJSON(strings.NewReader(`{"id": 1}`), "")
	assert.ErrorContains(t, err, "failed to decode catalog seed")
}
