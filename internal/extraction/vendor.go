package extraction

import (
	"regexp"
	"strings"
)

// vendorScanLines bounds how far down the receipt the merchant name is looked for
const vendorScanLines = 8

var (
	knownMerchant = regexp.MustCompile(`(?i)\b(WALMART|TARGET|STARBUCKS|DOMINO'S|MCDONALD'S|SUBWAY|AMAZON|COSTCO|HOME DEPOT|SHELL|EXXON|BP|CVS|WALGREENS|KROGER|SAFEWAY)\b`)
	allCapsLine   = regexp.MustCompile(`^([A-Z][A-Z\s&'.-]+[A-Z])$`)
	mixedCaseLine = regexp.MustCompile(`^([A-Z][A-Za-z\s&'.-]{2,30})$`)
	legalEntity   = regexp.MustCompile(`(?i)^([A-Za-z\s&'.,-]+(?:LLC|INC|CORP|LTD)\.?)$`)
	storeNumber   = regexp.MustCompile(`^([A-Za-z\s&'.-]+?)\s*#?\d+$`)

	vendorBoilerplate = regexp.MustCompile(`(?i)^(?:RECEIPT|INVOICE|BILL|THANK YOU)`)
	numericOnly       = regexp.MustCompile(`^[\d\s.-]+$`)
	nonNameChars      = regexp.MustCompile(`[^\w\s&'.-]`)
)

var vendorMatchers = []Matcher[string]{
	regexVendor("known-merchant", knownMerchant),
	regexVendor("all-caps", allCapsLine),
	regexVendor("mixed-case", mixedCaseLine),
	regexVendor("legal-entity", legalEntity),
	regexVendor("store-number", storeNumber),
}

func regexVendor(name string, re *regexp.Regexp) Matcher[string] {
	return Matcher[string]{
		Name: name,
		Match: func(line string) (string, bool) {
			m := re.FindStringSubmatch(line)
			if m == nil {
				return "", false
			}
			name := strings.TrimSpace(m[1])
			if len(name) <= 2 {
				return "", false
			}
			return name, true
		},
	}
}

func skipVendorLine(line string) bool {
	return numericOnly.MatchString(line) || vendorBoilerplate.MatchString(line)
}

// VendorCandidates returns merchant-name candidates from the top of the receipt
func VendorCandidates(text string) []Candidate[string] {
	var lines []string
	for _, l := range splitLines(text) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
		if len(lines) == vendorScanLines {
			break
		}
	}
	return scan(lines, vendorMatchers, skipVendorLine, nil)
}

// ExtractVendor returns the cleaned merchant name, or "" if no line looks like one
func ExtractVendor(text string) string {
	best, ok := Best(VendorCandidates(text))
	if !ok {
		return ""
	}
	return CleanVendor(best.Value)
}

// CleanVendor strips punctuation that cannot be part of a name and title-cases each word
func CleanVendor(name string) string {
	name = strings.TrimSpace(nonNameChars.ReplaceAllString(name, ""))
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	r := []rune(strings.ToLower(w))
	if len(r) == 0 {
		return w
	}
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
