// cinelingua-service/internal/recommend/curated.go
package recommend

import (
	"strings"

	"cinelingua-service/internal/domain"
)

// Bucket - семейство жанров с квотой в подборке. Фильм относится к первой
// корзине, ключевое слово которой встречается в одном из его жанров.
type Bucket struct {
	Name     string   `koanf:"name" validate:"required"`
	Keywords []string `koanf:"keywords" validate:"min=1,dive,required,lowercase"`
	Quota    int      `koanf:"quota" validate:"gte=0"`
}

// CuratedConfig управляет SelectCurated.
type CuratedConfig struct {
	Buckets []Bucket
	Target  int
}

// DefaultCuratedConfig возвращает таблицу квот подборки (24 фильма).
func DefaultCuratedConfig() CuratedConfig {
	return CuratedConfig{
		Buckets: []Bucket{
			{Name: "drama", Keywords: []string{"drama"}, Quota: 5},
			{Name: "comedy", Keywords: []string{"comedy"}, Quota: 4},
			{Name: "action", Keywords: []string{"action", "adventure"}, Quota: 3},
			{Name: "thriller", Keywords: []string{"thriller", "crime", "mystery"}, Quota: 3},
			{Name: "sci-fi", Keywords: []string{"science fiction", "sci-fi", "fantasy"}, Quota: 2},
			{Name: "romance", Keywords: []string{"romance"}, Quota: 2},
			{Name: "animation", Keywords: []string{"animation", "family"}, Quota: 2},
			{Name: "horror", Keywords: []string{"horror"}, Quota: 1},
			{Name: "documentary", Keywords: []string{"documentary"}, Quota: 1},
		},
		Target: 24,
	}
}

// bucketOf возвращает индекс корзины фильма или -1.
func (c CuratedConfig) bucketOf(m domain.Movie) int {
	for i, b := range c.Buckets {
		for _, kw := range b.Keywords {
			for _, g := range m.Genres {
				if strings.Contains(g, kw) {
					return i
				}
			}
		}
	}
	return -1
}

// SelectCurated выбирает до cfg.Target фильмов из pool, уже упорядоченного по
// популярности. Первый проход заполняет квоты корзин в порядке пула; фильмы вне
// корзин пропускаются. Если результата не хватает, второй проход добирает любые
// невыбранные фильмы в порядке пула. Результат зависит только от порядка пула и cfg.
func SelectCurated(pool []domain.Movie, cfg CuratedConfig) []domain.Movie {
	if cfg.Target <= 0 {
		return []domain.Movie{}
	}
	out := make([]domain.Movie, 0, cfg.Target)
	picked := make(map[string]struct{}, cfg.Target)
	used := make([]int, len(cfg.Buckets))

	for _, m := range pool {
		if len(out) >= cfg.Target {
			break
		}
		if _, dup := picked[m.ID]; dup {
			continue
		}
		b := cfg.bucketOf(m)
		if b < 0 || used[b] >= cfg.Buckets[b].Quota {
			continue
		}
		used[b]++
		picked[m.ID] = struct{}{}
		out = append(out, m)
	}

	for _, m := range pool {
		if len(out) >= cfg.Target {
			break
		}
		if _, dup := picked[m.ID]; dup {
			continue
		}
		picked[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
