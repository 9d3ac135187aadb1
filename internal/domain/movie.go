// cinelingua-service/internal/domain/movie.go
package domain

import "strings"

// Границы года выхода. Все, что вне их, считается неизвестным.
const (
	MinReleaseYear = 1800
	MaxReleaseYear = 2100
)

// SortMode - порядок сортировки результата рекомендаций.
type SortMode string

const (
	SortPopularity   SortMode = "popularity"
	SortRating       SortMode = "rating"
	SortNewest       SortMode = "newest"
	SortOldest       SortMode = "oldest"
	SortPersonalized SortMode = "personalized"
)

// ParseSortMode отображает произвольный ввод в SortMode. Неизвестный или пустой
// ввод дает SortPopularity.
func ParseSortMode(s string) SortMode {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "rating":
		return SortRating
	case "newest", "recent":
		return SortNewest
	case "oldest":
		return SortOldest
	case "personalized", "personal":
		return SortPersonalized
	default:
		return SortPopularity
	}
}

// Movie - фильм каталога после нормализации на границе хранилища.
// Опциональные атрибуты - указатели; nil значит, что в каталоге значения нет.
type Movie struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	OriginalTitle      string   `json:"original_title"`
	ReleaseDate        *string  `json:"release_date"`
	ReleaseYear        *int     `json:"release_year"`
	OriginalLanguage   string   `json:"original_language"`
	Genres             []string `json:"genre_list"`
	Overview           *string  `json:"overview"`
	Runtime            *float64 `json:"runtime"`
	Popularity         *float64 `json:"popularity"`
	VoteAverage        *float64 `json:"vote_average"`
	PosterPath         *string  `json:"poster_path,omitempty"`
	PosterURL          *string  `json:"poster_url"`
	LinguisticLevel    *string  `json:"linguistic_level"`
	LinguisticRegister *string  `json:"linguistic_register"`
}

// HasPoster сообщает, есть ли у фильма непустой poster_path.
func (m Movie) HasPoster() bool {
	return m.PosterPath != nil && strings.TrimSpace(*m.PosterPath) != ""
}

// PopularityOrZero возвращает популярность или 0, если она неизвестна.
func (m Movie) PopularityOrZero() float64 {
	if m.Popularity == nil {
		return 0
	}
	return *m.Popularity
}

// LabelCount - один столбец гистограммы статистики.
type LabelCount struct {
	Label string `json:"label" db:"label"`
	Value int    `json:"value" db:"value"`
}

// Stats - сводка каталога для страницы статистики.
type Stats struct {
	TotalMovies       int          `json:"total_movies"`
	LanguagesTop      []LabelCount `json:"languages_top"`
	LevelsTop         []LabelCount `json:"levels_top"`
	GenresTop         []LabelCount `json:"genres_top"`
	YearsDistribution []LabelCount `json:"years_distribution"`
}

// EmptyStats - статистика пустого каталога.
func EmptyStats() Stats {
	return Stats{
		LanguagesTop:      []LabelCount{},
		LevelsTop:         []LabelCount{},
		GenresTop:         []LabelCount{},
		YearsDistribution: []LabelCount{},
	}
}

// NormalizeGenres обрезает пробелы и приводит жанры к нижнему регистру, пропуская пустые.
func NormalizeGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			out = append(out, g)
		}
	}
	return out
}

// NormalizeTag обрезает пробелы и приводит тег к нижнему регистру; пустой или "nan" дает nil.
func NormalizeTag(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	if v == "" || v == "nan" {
		return nil
	}
	return &v
}

// YearFromDate извлекает первую группу из четырех цифр из даты и возвращает ее,
// если она попадает в допустимый диапазон.
func YearFromDate(date string) (int, bool) {
	run, start := 0, -1
	for i := 0; i < len(date); i++ {
		c := date[i]
		if c >= '0' && c <= '9' {
			if run == 0 {
				start = i
			}
			run++
			if run == 4 {
				y := 0
				for _, d := range date[start : start+4] {
					y = y*10 + int(d-'0')
				}
				if y < MinReleaseYear || y > MaxReleaseYear {
					return 0, false
				}
				return y, true
			}
			continue
		}
		run = 0
	}
	return 0, false
}
