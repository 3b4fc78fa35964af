package extract

import "strings"

// NormalizeEnum maps free text onto a closed vocabulary. Matching is a
// case-insensitive comparison against each canonical value.
func NormalizeEnum[T ~string](s string, vocab []T) (T, bool) {
	var zero T
	value := strings.TrimSpace(s)
	if value == "" {
		return zero, false
	}
	for _, candidate := range vocab {
		if strings.EqualFold(string(candidate), value) {
			return candidate, true
		}
	}
	lower := strings.ToLower(value)
	for _, candidate := range vocab {
		if strings.ToLower(string(candidate)) == lower {
			return candidate, true
		}
	}
	return zero, false
}
