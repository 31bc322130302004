package summarize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CategoryOther is assigned when the model omits or invents a category.
const CategoryOther = "other"

// Categories is the closed label set, in prompt order.
var Categories = []string{
	"fitness",
	"cooking",
	"career",
	"finance",
	"education",
	"entertainment",
	"technology",
	"health",
	"travel",
	CategoryOther,
}

var categoryAliases = map[string]string{
	"food":         "cooking",
	"recipe":       "cooking",
	"recipes":      "cooking",
	"workout":      "fitness",
	"exercise":     "fitness",
	"sports":       "fitness",
	"money":        "finance",
	"investing":    "finance",
	"business":     "career",
	"productivity": "career",
	"tech":         "technology",
	"science":      "education",
	"learning":     "education",
	"comedy":       "entertainment",
	"music":        "entertainment",
	"gaming":       "entertainment",
	"wellness":     "health",
	"nutrition":    "health",
}

// NormalizeCategory maps raw model output onto the closed label set.
func NormalizeCategory(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Trim(key, ".\"' ")
	if key == "" {
		return CategoryOther
	}
	for _, c := range Categories {
		if key == c {
			return c
		}
	}
	if mapped, ok := categoryAliases[key]; ok {
		return mapped
	}
	return CategoryOther
}

// CategoryLabel renders a category for display ("cooking" -> "Cooking").
func CategoryLabel(category string) string {
	return cases.Title(language.English).String(NormalizeCategory(category))
}
