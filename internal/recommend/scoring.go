// cinelingua-service/internal/recommend/scoring.go
package recommend

import (
	"math"

	"cinelingua-service/internal/domain"
)

// Ширина экспоненциальных признаков близости.
const (
	yearBandwidth    = 10.0
	runtimeBandwidth = 40.0
)

// Weights смешивает признаки в одну оценку.
type Weights struct {
	Genre      float64 `koanf:"genre"`
	Year       float64 `koanf:"year"`
	Rating     float64 `koanf:"rating"`
	Runtime    float64 `koanf:"runtime"`
	Popularity float64 `koanf:"popularity"`
}

// DefaultWeights отдает приоритет совпадению жанров, затем эпохе и качеству.
var DefaultWeights = Weights{
	Genre:      0.55,
	Year:       0.15,
	Rating:     0.15,
	Runtime:    0.10,
	Popularity: 0.05,
}

// Scorer считает близость кандидата к профилю. Оценки детерминированы.
type Scorer struct {
	weights Weights
}

// NewScorer создает Scorer с фиксированными весами. Нулевое значение Weights
// означает DefaultWeights.
func NewScorer(w Weights) Scorer {
	if w == (Weights{}) {
		w = DefaultWeights
	}
	return Scorer{weights: w}
}

// Weights возвращает используемые веса.
func (s Scorer) Weights() Weights { return s.weights }

// Score возвращает взвешенную сумму нормализованных признаков m относительно p.
func (s Scorer) Score(m domain.Movie, p Profile) float64 {
	return s.weights.Genre*GenreAffinity(m, p) +
		s.weights.Year*YearAffinity(m, p) +
		s.weights.Rating*RatingScore(m) +
		s.weights.Runtime*RuntimeAffinity(m, p) +
		s.weights.Popularity*PopularityScore(m)
}

// GenreAffinity - сумма весов профиля по жанрам фильма, деленная на число его
// различных жанров, так что длинный хвост посторонних жанров размывает оценку.
func GenreAffinity(m domain.Movie, p Profile) float64 {
	if len(m.Genres) == 0 || len(p.genreWeights) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(m.Genres))
	sum := 0.0
	for _, g := range m.Genres {
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		sum += p.genreWeights[g]
	}
	return sum / float64(len(seen))
}

// YearAffinity убывает с расстоянием до среднего года профиля.
func YearAffinity(m domain.Movie, p Profile) float64 {
	if m.ReleaseYear == nil || p.MeanYear == nil {
		return 0
	}
	return math.Exp(-math.Abs(float64(*m.ReleaseYear)-*p.MeanYear) / yearBandwidth)
}

// RuntimeAffinity убывает с расстоянием до средней длительности профиля.
func RuntimeAffinity(m domain.Movie, p Profile) float64 {
	if m.Runtime == nil || p.MeanRuntime == nil {
		return 0
	}
	return math.Exp(-math.Abs(*m.Runtime-*p.MeanRuntime) / runtimeBandwidth)
}

// RatingScore отображает рейтинг 0-10 в [0, 1].
func RatingScore(m domain.Movie) float64 {
	if m.VoteAverage == nil {
		return 0
	}
	return clamp01(*m.VoteAverage / 10)
}

// PopularityScore логарифмически сжимает популярность в [0, 1].
func PopularityScore(m domain.Movie) float64 {
	if m.Popularity == nil {
		return 0
	}
	return clamp01(math.Log1p(max(0, *m.Popularity)) / 10)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(1, v))
}
