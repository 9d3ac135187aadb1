// cinelingua-service/internal/filter/spec.go
package filter

import (
	"errors"
	"fmt"
	"slices"

	"cinelingua-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Границы параметров пагинации.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxOffset    = 10000
)

// ErrLanguageRequired возвращается, если язык пуст после нормализации.
var ErrLanguageRequired = errors.New("lang is required")

var validate = validator.New()

// Spec - нормализованный фильтр каталога. Отсутствующие опциональные поля не
// ограничивают выборку, заданные объединяются через AND. Build возвращает новое
// значение, срезы которого не разделяются со входом, поэтому Spec можно
// передавать по значению.
type Spec struct {
	Language           string   `json:"lang" validate:"required"`
	Genres             []string `json:"genres,omitempty" validate:"dive,required"`
	MinRating          *float64 `json:"min_rating,omitempty" validate:"omitempty,gte=0,lte=10"`
	MaxRuntime         *float64 `json:"max_runtime,omitempty" validate:"omitempty,gt=0"`
	LinguisticLevel    string   `json:"linguistic_level,omitempty"`
	LinguisticRegister string   `json:"linguistic_register,omitempty"`
	YearMin            *int     `json:"year_min,omitempty" validate:"omitempty,gte=1800,lte=2100"`
	YearMax            *int     `json:"year_max,omitempty" validate:"omitempty,gte=1800,lte=2100"`
	Limit              int      `json:"limit" validate:"gte=1,lte=100"`
	Offset             int      `json:"offset" validate:"gte=0,lte=10000"`

	// Defaulted - числовые поля, для которых взято значение по умолчанию.
	Defaulted []string `json:"-"`
}

// Build нормализует сырой запрос в Spec. Ошибкой считается только пустой язык;
// некорректные числа молча заменяются значениями по умолчанию.
func Build(req domain.RecommendationRequest) (Spec, error) {
	spec := Spec{
		Language:           NormalizeText(req.Lang),
		LinguisticLevel:    NormalizeText(req.LinguisticLevel),
		LinguisticRegister: NormalizeText(req.LinguisticRegister),
	}
	if spec.Language == "" {
		return Spec{}, ErrLanguageRequired
	}

	genres := domain.NormalizeGenres(req.Genres)
	slices.Sort(genres)
	spec.Genres = slices.Compact(genres)
	if len(spec.Genres) == 0 {
		spec.Genres = nil
	}

	limitInput := req.Limit
	if _, ok := limitInput.Raw(); !ok {
		limitInput = req.TopN
	}
	limit := ClampInt(limitInput, 1, MaxLimit, DefaultLimit)
	offset := ClampInt(req.Offset, 0, MaxOffset, 0)
	spec.Limit, spec.Offset = limit.Value, offset.Value
	if limit.Defaulted {
		spec.Defaulted = append(spec.Defaulted, "limit")
	}
	if offset.Defaulted {
		spec.Defaulted = append(spec.Defaulted, "offset")
	}

	if f := OptionalFloat(req.MinRating); f != nil {
		r := max(0, min(10, *f))
		spec.MinRating = &r
	} else {
		spec.markDefaulted(req.MinRating, "min_rating")
	}
	if f := OptionalFloat(req.MaxRuntime); f != nil && *f > 0 {
		spec.MaxRuntime = f
	} else {
		spec.markDefaulted(req.MaxRuntime, "max_runtime")
	}
	spec.YearMin = spec.year(req.YearMin, "year_min")
	spec.YearMax = spec.year(req.YearMax, "year_max")

	if err := validate.Struct(spec); err != nil {
		return Spec{}, fmt.Errorf("invalid filter: %w", err)
	}
	return spec, nil
}

func (s *Spec) year(n domain.Number, field string) *int {
	y, ok := ParseInt(n)
	if !ok || y < domain.MinReleaseYear || y > domain.MaxReleaseYear {
		s.markDefaulted(n, field)
		return nil
	}
	return &y
}

// markDefaulted отмечает поле, только если значение было передано, но отброшено.
func (s *Spec) markDefaulted(n domain.Number, field string) {
	if _, supplied := n.Raw(); supplied {
		s.Defaulted = append(s.Defaulted, field)
	}
}

// WithPage возвращает копию s с новыми параметрами пагинации, ограниченными
// допустимыми границами.
func (s Spec) WithPage(limit, offset int) Spec {
	out := s
	out.Genres = slices.Clone(s.Genres)
	out.Defaulted = slices.Clone(s.Defaulted)
	out.Limit = max(1, min(MaxLimit, limit))
	out.Offset = max(0, min(MaxOffset, offset))
	return out
}

// Matches проверяет фильм на соответствие условиям. Повторяет SQL хранилища
// Postgres: отсутствующие рейтинг, длительность, уровень, регистр или год никогда
// не удовлетворяют ограничению на этот атрибут.
func (s Spec) Matches(m domain.Movie) bool {
	if m.OriginalLanguage != s.Language {
		return false
	}
	if len(s.Genres) > 0 && !Overlaps(s.Genres, m.Genres) {
		return false
	}
	if s.MinRating != nil && (m.VoteAverage == nil || *m.VoteAverage < *s.MinRating) {
		return false
	}
	if s.MaxRuntime != nil && (m.Runtime == nil || *m.Runtime > *s.MaxRuntime) {
		return false
	}
	if s.LinguisticLevel != "" && (m.LinguisticLevel == nil || *m.LinguisticLevel != s.LinguisticLevel) {
		return false
	}
	if s.LinguisticRegister != "" && (m.LinguisticRegister == nil || *m.LinguisticRegister != s.LinguisticRegister) {
		return false
	}
	if s.YearMin != nil && (m.ReleaseYear == nil || *m.ReleaseYear < *s.YearMin) {
		return false
	}
	if s.YearMax != nil && (m.ReleaseYear == nil || *m.ReleaseYear > *s.YearMax) {
		return false
	}
	return true
}

// Overlaps сообщает, есть ли у двух наборов жанров хотя бы один общий.
func Overlaps(want, have []string) bool {
	for _, g := range have {
		if slices.Contains(want, g) {
			return true
		}
	}
	return false
}

// HasMore - контракт пагинации: за этой страницей есть еще строки.
func HasMore(offset, returned, total int) bool {
	return offset+returned < total
}
