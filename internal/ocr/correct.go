package ocr

import (
	"regexp"
	"strings"
)

// Letters OCR engines commonly return in place of digits inside numbers
const confusables = "OoIlZSGTBgisztb"

var digitFor = strings.NewReplacer(
	"O", "0", "o", "0",
	"I", "1", "i", "1", "l", "1",
	"Z", "2", "z", "2",
	"S", "5", "s", "5",
	"G", "6",
	"T", "7", "t", "7",
	"B", "8", "b", "8",
	"g", "9",
)

const looseDigit = `[0-9` + confusables + `]`

// looseAmount matches a number that starts with a real digit and may contain confusable letters
// and digit grouping, followed by a separator and two more characters: "245.50", "24S.5O", "12,99",
// "1,00,000.00". Labels glued to a number such as "SGST9.00" never match.
const looseAmount = `[0-9]` + looseDigit + `*(?:,` + looseDigit + `{2,3})*[.,:;]` + looseDigit + `{2}`

// markedAmount also allows one misread leading digit, trusted only after a currency marker
const markedAmount = looseDigit + `?` + looseAmount

var (
	// Misread rupee markers directly in front of an amount
	rupeeMarker = regexp.MustCompile(`(?i)\b(?:rs|r5|r8|fb|fs|inr)\.?\s*(` + markedAmount + `)\b`)

	// Misread dollar signs
	dollarMarker = regexp.MustCompile(`\b[S8B5]\$|§`)

	amountToken = regexp.MustCompile(`(Rs |\$ ?|₹ ?|€ ?|£ ?|¥ ?)(` + markedAmount + `)\b|\b(` + looseAmount + `)\b`)
)

type keywordFix struct {
	pattern     *regexp.Regexp
	replacement string
}

// Only corrupted spellings are listed so correct keywords pass through untouched
var keywordFixes = []keywordFix{
	{regexp.MustCompile(`(?i)\bsubtota[i1]?\b`), "SUBTOTAL"},
	{regexp.MustCompile(`(?i)\b(?:tota[i1]|toia[i1l]|tota)\b`), "TOTAL"},
	{regexp.MustCompile(`(?i)\bamoun7?\b`), "AMOUNT"},
	{regexp.MustCompile(`(?i)\bba[i1]ance\b`), "BALANCE"},
}

// Correct repairs common OCR misreads in receipt text. Stages run in order:
// currency markers, then digit confusions inside amount-like tokens, then receipt keywords.
// Line structure is preserved and Correct(Correct(s)) == Correct(s).
func Correct(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = normalizeCurrency(line)
		line = normalizeAmounts(line)
		line = normalizeKeywords(line)
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func normalizeCurrency(line string) string {
	line = rupeeMarker.ReplaceAllString(line, "Rs $1")
	return dollarMarker.ReplaceAllString(line, "$$")
}

// normalizeAmounts fixes letters and separators inside amount-like tokens only.
// Colon and semicolon separators are only trusted after a currency marker so times like 12:30 survive.
func normalizeAmounts(line string) string {
	return amountToken.ReplaceAllStringFunc(line, func(match string) string {
		sub := amountToken.FindStringSubmatch(match)
		prefix, token := sub[1], sub[2]
		if token == "" {
			token = sub[3]
		}

		sepIdx := strings.LastIndexAny(token, ".,:;")
		intPart, sep, frac := token[:sepIdx], token[sepIdx], token[sepIdx+1:]
		if (sep == ':' || sep == ';') && prefix == "" {
			return match
		}

		return prefix + digitFor.Replace(intPart) + "." + digitFor.Replace(frac)
	})
}

func normalizeKeywords(line string) string {
	for _, fix := range keywordFixes {
		line = fix.pattern.ReplaceAllString(line, fix.replacement)
	}
	return line
}
