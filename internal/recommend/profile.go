// cinelingua-service/internal/recommend/profile.go
package recommend

import (
	"cmp"
	"slices"

	"cinelingua-service/internal/domain"
)

// Profile - сводка вкуса по набору любимых фильмов в рамках одного запроса.
// Средние равны nil, если ни у одного фильма не было атрибута.
type Profile struct {
	genreWeights map[string]float64
	genreOrder   []string

	MeanYear    *float64
	MeanRuntime *float64
	MeanRating  *float64
}

// GenreWeight возвращает долю вхождений жанра genre.
func (p Profile) GenreWeight(genre string) float64 {
	return p.genreWeights[genre]
}

// TopGenres перечисляет жанры по убыванию веса. При равных весах сохраняется
// порядок первого появления.
func (p Profile) TopGenres() []string {
	out := slices.Clone(p.genreOrder)
	slices.SortStableFunc(out, func(a, b string) int {
		return cmp.Compare(p.genreWeights[b], p.genreWeights[a])
	})
	return out
}

// BuildProfile сворачивает избранное в Profile. Пустой вход дает ok=false:
// профиля нет и нужен неперсональный порядок.
func BuildProfile(favorites []domain.Movie) (Profile, bool) {
	if len(favorites) == 0 {
		return Profile{}, false
	}

	counts := make(map[string]int)
	var order []string
	total := 0
	var years, runtimes, ratings []float64

	for _, m := range favorites {
		seen := make(map[string]struct{}, len(m.Genres))
		for _, g := range m.Genres {
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			if _, known := counts[g]; !known {
				order = append(order, g)
			}
			counts[g]++
			total++
		}
		if m.ReleaseYear != nil {
			years = append(years, float64(*m.ReleaseYear))
		}
		if m.Runtime != nil {
			runtimes = append(runtimes, *m.Runtime)
		}
		if m.VoteAverage != nil {
			ratings = append(ratings, *m.VoteAverage)
		}
	}

	weights := make(map[string]float64, len(counts))
	for g, c := range counts {
		weights[g] = float64(c) / float64(total)
	}

	return Profile{
		genreWeights: weights,
		genreOrder:   order,
		MeanYear:     mean(years),
		MeanRuntime:  mean(runtimes),
		MeanRating:   mean(ratings),
	}, true
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}
