// cinelingua-service/internal/domain/request.go
package domain

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// Number хранит исходный текст слабо типизированного JSON скаляра. Декодирование
// никогда не падает: числа, числовые строки, мусор и null принимаются, а
// интерпретация остается нормализаторам пакета filter.
type Number struct {
	raw string
	set bool
}

// NumberOf создает Number из текста, например из query параметра.
func NumberOf(s string) Number {
	s = strings.TrimSpace(s)
	return Number{raw: s, set: s != ""}
}

// UnmarshalJSON реализует json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*n = NumberOf(s)
			return nil
		}
	}
	*n = Number{raw: string(b), set: true}
	return nil
}

// MarshalJSON реализует json.Marshaler. Незаданное число кодируется как null.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return json.Marshal(n.raw)
}

// Raw возвращает сохраненный текст и признак того, что значение было передано.
func (n Number) Raw() (string, bool) {
	return n.raw, n.set
}

// StringList принимает JSON массив скаляров или один скаляр и хранит каждый
// элемент как текст.
type StringList []string

// UnmarshalJSON реализует json.Unmarshaler.
func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] != '[' {
		var one Number
		_ = one.UnmarshalJSON(b)
		if s, ok := one.Raw(); ok {
			*l = StringList{s}
		} else {
			*l = nil
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(StringList, 0, len(items))
	for _, item := range items {
		var v Number
		_ = v.UnmarshalJSON(item)
		if s, ok := v.Raw(); ok {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// SplitList строит StringList из текста через запятую, пропуская пустые элементы.
func SplitList(s string) StringList {
	var out StringList
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// RecommendationRequest - тело запроса эндпоинтов рекомендаций. Числовые поля
// разбираются нестрого; см. пакет filter.
type RecommendationRequest struct {
	Lang               string     `json:"lang"`
	Genres             StringList `json:"genres,omitempty"`
	TopN               Number     `json:"top_n"`
	Limit              Number     `json:"limit"`
	Offset             Number     `json:"offset"`
	MinRating          Number     `json:"min_rating"`
	MaxRuntime         Number     `json:"max_runtime"`
	LinguisticLevel    string     `json:"linguistic_level,omitempty"`
	LinguisticRegister string     `json:"linguistic_register,omitempty"`
	YearMin            Number     `json:"year_min"`
	YearMax            Number     `json:"year_max"`
	SortBy             string     `json:"sort_by,omitempty"`
	FavIDs             StringList `json:"fav_ids,omitempty"`
}

// FavoriteIDs возвращает очищенные ID избранного без дублей в исходном порядке.
func (r RecommendationRequest) FavoriteIDs() []string {
	seen := make(map[string]struct{}, len(r.FavIDs))
	out := make([]string, 0, len(r.FavIDs))
	for _, id := range r.FavIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RecommendationResponse - ответ эндпоинта рекомендаций.
type RecommendationResponse struct {
	Results []Movie  `json:"results"`
	Count   int      `json:"count"`
	SortBy  SortMode `json:"sort_by"`
}

// PageResponse - вариант RecommendationResponse с пагинацией.
type PageResponse struct {
	Results []Movie  `json:"results"`
	Count   int      `json:"count"`
	SortBy  SortMode `json:"sort_by"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	HasMore bool     `json:"has_more"`
}

// PicksResponse - ответ эндпоинта booth picks.
type PicksResponse struct {
	Results []Movie `json:"results"`
	Count   int     `json:"count"`
}
