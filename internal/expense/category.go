package expense

import (
	"strings"
	"unicode"
)

// Category is one of the closed set of expense categories
type Category string

const (
	FoodAndDrink   Category = "Food & Drink"
	Transportation Category = "Transportation"
	Shopping       Category = "Shopping"
	Entertainment  Category = "Entertainment"
	Healthcare     Category = "Healthcare"
	Utilities      Category = "Utilities"
	Travel         Category = "Travel"
	Education      Category = "Education"
	Business       Category = "Business"
	Other          Category = "Other"
)

var allCategories = []Category{
	FoodAndDrink,
	Transportation,
	Shopping,
	Entertainment,
	Healthcare,
	Utilities,
	Travel,
	Education,
	Business,
	Other,
}

// CategoryNames returns the categories as plain strings
func CategoryNames() []string {
	out := make([]string, len(allCategories))
	for i, c := range allCategories {
		out[i] = string(c)
	}
	return out
}

var categorySynonyms = map[string]Category{
	"food":           FoodAndDrink,
	"food and drink": FoodAndDrink,
	"dining":         FoodAndDrink,
	"restaurant":     FoodAndDrink,
	"groceries":      FoodAndDrink,
	"transport":      Transportation,
	"fuel":           Transportation,
	"medical":        Healthcare,
	"health":         Healthcare,
	"pharmacy":       Healthcare,
	"utility":        Utilities,
	"bills":          Utilities,
	"lodging":        Travel,
	"hotel":          Travel,
	"training":       Education,
	"certification":  Education,
	"professional":   Business,
}

// Canonicalize maps a free-form category name onto the closed set.
// The second result is false when input matched nothing and Other was substituted.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}
	for _, c := range allCategories {
		if normalized == strings.ToLower(string(c)) {
			return c, true
		}
	}
	if c, ok := categorySynonyms[normalized]; ok {
		return c, true
	}
	return Other, false
}

type categoryRule struct {
	category Category
	keywords []string
}

// Checked in order; the first rule with a hit wins.
var categoryRules = []categoryRule{
	{FoodAndDrink, []string{"domino", "pizza", "starbucks", "restaurant", "coffee", "food", "mcdonald", "subway", "cafe", "burger", "kfc", "taco"}},
	{Transportation, []string{"gas", "shell", "exxon", "uber", "lyft", "taxi", "chevron", "bp", "fuel"}},
	{Shopping, []string{"walmart", "target", "amazon", "store", "shop", "market", "costco", "kroger"}},
	{Entertainment, []string{"movie", "netflix", "spotify", "game", "entertainment", "cinema"}},
	{Healthcare, []string{"hospital", "doctor", "pharmacy", "health", "medical", "cvs", "walgreens"}},
	{Utilities, []string{"electric", "water", "internet", "phone", "utility", "cable"}},
	{Travel, []string{"hotel", "airline", "flight", "travel", "booking"}},
	{Education, []string{"aws", "certified", "course", "education", "university", "school"}},
	{Business, []string{"office", "business", "corp", "llc", "inc"}},
}

// Categorize guesses a category from the vendor name and description using keyword rules.
// Keywords of three letters or fewer must match a whole word so "bp" does not fire on "bbq sbp".
func Categorize(vendor, description string) Category {
	text := strings.ToLower(vendor + " " + description)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if len(kw) <= 3 {
				if _, ok := wordSet[kw]; ok {
					return rule.category
				}
				continue
			}
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return Other
}
