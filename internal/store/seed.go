// cinelingua-service/internal/store/seed.go
package store

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"cinelingua-service/internal/domain"
)

// seedRecord - строка каталога, выгруженная в JSON, с колонками таблицы movies.
type seedRecord struct {
	ID                 domain.Number `json:"id"`
	Title              *string       `json:"title"`
	OriginalTitle      *string       `json:"original_title"`
	ReleaseDate        *string       `json:"release_date"`
	OriginalLanguage   *string       `json:"original_language"`
	Genres             []string      `json:"genres"`
	Overview           *string       `json:"overview"`
	Runtime            *float64      `json:"runtime"`
	Popularity         *float64      `json:"popularity"`
	VoteAverage        *float64      `json:"vote_average"`
	PosterPath         *string       `json:"poster_path"`
	LinguisticLevel    *string       `json:"linguistic_level"`
	LinguisticRegister *string       `json:"linguistic_register"`
}

func (r seedRecord) toRow() movieRow {
	id, _ := r.ID.Raw()
	return movieRow{
		ID:                 id,
		Title:              toNullString(r.Title),
		OriginalTitle:      toNullString(r.OriginalTitle),
		ReleaseDate:        toNullString(r.ReleaseDate),
		OriginalLanguage:   toNullString(r.OriginalLanguage),
		Genres:             r.Genres,
		Overview:           toNullString(r.Overview),
		Runtime:            toNullFloat(r.Runtime),
		Popularity:         toNullFloat(r.Popularity),
		VoteAverage:        toNullFloat(r.VoteAverage),
		PosterPath:         toNullString(r.PosterPath),
		LinguisticLevel:    toNullString(r.LinguisticLevel),
		LinguisticRegister: toNullString(r.LinguisticRegister),
	}
}

// LoadJSON добавляет все фильмы из JSON массива r, нормализуя их так же, как
// строки из Postgres. Записи без id пропускаются.
func (m *MockCatalogStore) LoadJSON(r io.Reader, imageBase string) (int, error) {
	if imageBase == "" {
		imageBase = DefaultImageBase
	}
	var records []seedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("failed to decode catalog seed: %w", err)
	}

	loaded := 0
	for _, rec := range records {
		row := rec.toRow()
		if strings.TrimSpace(row.ID) == "" {
			continue
		}
		m.Add(row.toDomain(imageBase))
		loaded++
	}
	m.logger.Info("Catalog seed loaded", slog.Int("movies", loaded), slog.Int("skipped", len(records)-loaded))
	return loaded, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
