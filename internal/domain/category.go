package domain

import "strings"

// CategoryOther is the fallback bucket for tools that fit nowhere else.
const CategoryOther = "Other"

// DefaultCategories is the closed category set. Validation never invents
// categories outside it; only the recategorize maintenance step may extend it.
var DefaultCategories = []string{
	"Language Models",
	"Image Generation",
	"Audio & Speech",
	"Video Generation",
	"Developer Tools",
	CategoryOther,
}

// ClampCategory maps a free-form category to one from the allowed set,
// matching case-insensitively, or to "Other".
func ClampCategory(category string, allowed []string) string {
	if len(allowed) == 0 {
		allowed = DefaultCategories
	}
	want := strings.ToLower(strings.TrimSpace(category))
	for _, c := range allowed {
		if strings.ToLower(c) == want {
			return c
		}
	}
	return CategoryOther
}
