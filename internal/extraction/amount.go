package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Plausible amounts are strictly between these bounds
var (
	minAmount = decimal.Zero
	maxAmount = decimal.NewFromInt(999999)
)

// number accepts 1,234.56 and Indian grouping such as 1,00,000.00, or a plain number with two decimals
const number = `(\d{1,3}(?:,\d{2,3})+\.\d{2}|\d+[.,]\d{2})`

const amountKeywords = `(?:grand\s*total|sub\s*total|total|amount\s*due|amount|balance(?:\s*due)?|payable)`

var amountMatchers = []Matcher[decimal.Decimal]{
	regexAmount("keyword", regexp.MustCompile(`(?i)\b`+amountKeywords+`\b\s*[:.\-]?\s*(?:rs\.?|inr|[₹$£€¥₨])?\s*`+number)),
	regexAmount("rupee", regexp.MustCompile(`(?i)(?:\brs\.?|\binr|₹)\s*`+number)),
	regexAmount("currency-symbol", regexp.MustCompile(`[$£€¥₨₽₩₪₫₦₱]\s*`+number)),
	regexAmount("trailing-currency", regexp.MustCompile(`(?i)`+number+`\s*(?:rs\b|inr\b|[₹$£€¥])`)),
}

type amountRule struct {
	keyword *regexp.Regexp
	score   int
}

// subtotalKeyword is scored on its own and removed before the other rules run,
// so "SUB TOTAL" does not also count as a total.
var subtotalKeyword = regexp.MustCompile(`\bsub\s*total\b`)

const subtotalScore = 7

// Every rule whose keyword appears in the line as a word contributes to its score
var amountScoring = []amountRule{
	{regexp.MustCompile(`\btotal\b`), 10},
	{regexp.MustCompile(`\bamount\s+due\b`), 9},
	{regexp.MustCompile(`\bbalance\b`), 8},
	{regexp.MustCompile(`\bamount\b`), 6},
	{regexp.MustCompile(`\btax\b`), -3},
	{regexp.MustCompile(`\btip\b`), -3},
	{regexp.MustCompile(`\bchange\b`), -5},
}

func regexAmount(name string, re *regexp.Regexp) Matcher[decimal.Decimal] {
	return Matcher[decimal.Decimal]{
		Name: name,
		Match: func(line string) (decimal.Decimal, bool) {
			m := re.FindStringSubmatch(line)
			if m == nil {
				return decimal.Zero, false
			}
			v, err := ParseAmount(m[1])
			if err != nil || !v.GreaterThan(minAmount) || !v.LessThan(maxAmount) {
				return decimal.Zero, false
			}
			return v, true
		},
	}
}

// ParseAmount parses a receipt number, treating a lone comma as the decimal separator
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}

// AmountPriority scores a line by the keywords it contains
func AmountPriority(line string) int {
	lower := strings.ToLower(line)
	score := 0
	if subtotalKeyword.MatchString(lower) {
		score += subtotalScore
		lower = subtotalKeyword.ReplaceAllString(lower, " ")
	}
	for _, r := range amountScoring {
		if r.keyword.MatchString(lower) {
			score += r.score
		}
	}
	return score
}

// AmountCandidates returns every plausible amount in the text. Lines that repeat
// (ignoring case and surrounding space) are only scanned once.
func AmountCandidates(text string) []Candidate[decimal.Decimal] {
	seen := make(map[string]struct{})
	skip := func(line string) bool {
		key := strings.ToLower(strings.TrimSpace(line))
		if key == "" {
			return true
		}
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
		return false
	}
	return scan(splitLines(text), amountMatchers, skip, AmountPriority)
}

// ExtractAmount returns the best amount in the text, or zero if none was found
func ExtractAmount(text string) decimal.Decimal {
	best, ok := Best(AmountCandidates(text))
	if !ok {
		return decimal.Zero
	}
	return best.Value
}
