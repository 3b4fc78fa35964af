package extract

import (
	"regexp"
	"strconv"
	"strings"

	"dancetonight/internal/models"
)

var (
	// freeWords mark a free event anywhere in the text. The English "free"
	// only counts when it is the whole value: "Free before 10pm" is priced.
	freeWords  = []string{"gratis", "gratuit", "kostenlos", "бесплатно"}
	costAmount = regexp.MustCompile(`[$€£¥₽]?\s*(\d+)`)
)

// ClassifyCost buckets a free-text price into a cost category.
func ClassifyCost(cost string) models.CostCategory {
	value := strings.TrimSpace(cost)
	if value == "" {
		return models.CostPaid
	}
	lower := strings.ToLower(value)
	if lower == "free" || lower == "0" || containsAny(lower, freeWords) {
		return models.CostFree
	}
	m := costAmount.FindStringSubmatch(value)
	if m == nil {
		return models.CostPaid
	}
	amount, err := strconv.Atoi(m[1])
	if err != nil {
		// Longer than an int; certainly not cheap.
		return models.CostHigh
	}
	switch {
	case amount == 0:
		return models.CostFree
	case amount < 10:
		return models.CostLow
	case amount <= 25:
		return models.CostMedium
	default:
		return models.CostHigh
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
