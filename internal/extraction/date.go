package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the normalised calendar-date form
const DateLayout = "2006-01-02"

var (
	numericDayFirstOrMonthFirst = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	numericYearFirst            = regexp.MustCompile(`\b(\d{4})[/-](\d{1,2})[/-](\d{1,2})\b`)
	dayMonthName                = regexp.MustCompile(`(?i)\b(\d{1,2})\s+([a-z]{3,9})\.?,?\s+(\d{4})\b`)
	monthNameDay                = regexp.MustCompile(`(?i)\b([a-z]{3,9})\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	numericShortYear            = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2})\b`)
)

var dateMatchers = []Matcher[time.Time]{
	{Name: "numeric", Match: numericDate(numericDayFirstOrMonthFirst, 0)},
	{Name: "numeric-year-first", Match: numericDate(numericYearFirst, 0)},
	{Name: "day-month-name", Match: textualDate(dayMonthName, 1, 0, 2)},
	{Name: "month-name-day", Match: textualDate(monthNameDay, 0, 1, 2)},
	{Name: "numeric-short-year", Match: numericDate(numericShortYear, 2000)},
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ResolveNumericDate orders three numeric date components. A first component above 31
// is a year (Y-M-D), above 12 a day (D-M-Y), otherwise a month (M-D-Y).
func ResolveNumericDate(a, b, c int) (year, month, day int) {
	switch {
	case a > 31:
		return a, b, c
	case a > 12:
		return c, b, a
	default:
		return c, a, b
	}
}

// numericDate parses slash or dash dates; yearBase is added to the year component (for two-digit years)
func numericDate(re *regexp.Regexp, yearBase int) func(string) (time.Time, bool) {
	return func(line string) (time.Time, bool) {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return time.Time{}, false
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		c, _ := strconv.Atoi(m[3])
		if yearBase > 0 {
			c += yearBase
		}
		y, mo, d := ResolveNumericDate(a, b, c)
		return calendarDate(y, mo, d)
	}
}

// textualDate parses dates with a month name; the indexes locate month, day and year among the groups
func textualDate(re *regexp.Regexp, monthIdx, dayIdx, yearIdx int) func(string) (time.Time, bool) {
	return func(line string) (time.Time, bool) {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return time.Time{}, false
		}
		parts := m[1:]
		month, ok := monthNames[strings.ToLower(parts[monthIdx])[:3]]
		if !ok {
			return time.Time{}, false
		}
		d, _ := strconv.Atoi(parts[dayIdx])
		y, _ := strconv.Atoi(parts[yearIdx])
		return calendarDate(y, int(month), d)
	}
}

// calendarDate rejects components that time.Date would silently normalise (e.g. February 30)
func calendarDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || y < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

// DateCandidates returns every parseable date in the text, in reading order
func DateCandidates(text string) []Candidate[time.Time] {
	return scan(splitLines(text), dateMatchers, nil, nil)
}

// ExtractDate returns the first parseable date as YYYY-MM-DD, or today's date if there is none
func ExtractDate(text string, now time.Time) string {
	best, ok := Best(DateCandidates(text))
	if !ok {
		return now.Format(DateLayout)
	}
	return best.Value.Format(DateLayout)
}
