// cinelingua-service/internal/filter/normalize.go
package filter

import (
	"math"
	"strconv"
	"strings"

	"cinelingua-service/internal/domain"
)

// Numeric - результат разбора со значением по умолчанию. Defaulted равен true,
// если вход отсутствовал или был некорректен и Value взято из fallback.
type Numeric[T int | float64] struct {
	Value     T
	Defaulted bool
}

// ParseInt читает целое из нестрогого скаляра. Дробные числа усекаются к нулю.
func ParseInt(n domain.Number) (int, bool) {
	raw, ok := n.Raw()
	if !ok {
		return 0, false
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		// Сохраняем знак, чтобы clamp попал на нужную границу.
		if f > 0 {
			return math.MaxInt32, true
		}
		return math.MinInt32, true
	}
	return int(f), true
}

// ParseFloat читает конечное число из нестрогого скаляра.
func ParseFloat(n domain.Number) (float64, bool) {
	raw, ok := n.Raw()
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ClampInt разбирает n и ограничивает его [lo, hi]. Для отсутствующего или
// некорректного входа возвращается def.
func ClampInt(n domain.Number, lo, hi, def int) Numeric[int] {
	v, ok := ParseInt(n)
	if !ok {
		return Numeric[int]{Value: def, Defaulted: true}
	}
	return Numeric[int]{Value: max(lo, min(hi, v))}
}

// OptionalFloat разбирает n; для отсутствующего или некорректного входа nil.
func OptionalFloat(n domain.Number) *float64 {
	f, ok := ParseFloat(n)
	if !ok {
		return nil
	}
	return &f
}

// NormalizeText обрезает пробелы и приводит текст к нижнему регистру.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
