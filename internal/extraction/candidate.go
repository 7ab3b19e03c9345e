package extraction

import (
	"strings"
)

// Candidate is one value a matcher found, tagged with where it came from
type Candidate[T any] struct {
	Value      T
	SourceLine string
	Priority   int
	// Line is the index of the source line; earlier lines win ties
	Line int
	// Matcher names the pattern that produced the value
	Matcher string
	// order is the position in which the candidate was produced
	order int
}

// Matcher inspects one line and returns what it found, if anything
type Matcher[T any] struct {
	Name  string
	Match func(line string) (T, bool)
}

// scan runs every matcher over every line, skipping lines for which skip returns true.
// Candidates are returned in encounter order: line first, then matcher.
func scan[T any](lines []string, matchers []Matcher[T], skip func(line string) bool, score func(line string) int) []Candidate[T] {
	var out []Candidate[T]
	for i, line := range lines {
		if skip != nil && skip(line) {
			continue
		}
		for _, m := range matchers {
			v, ok := m.Match(line)
			if !ok {
				continue
			}
			c := Candidate[T]{
				Value:      v,
				SourceLine: strings.TrimSpace(line),
				Line:       i,
				Matcher:    m.Name,
				order:      len(out),
			}
			if score != nil {
				c.Priority = score(line)
			}
			out = append(out, c)
		}
	}
	return out
}

// Best returns the highest-priority candidate, preferring the one encountered first on ties
func Best[T any](candidates []Candidate[T]) (Candidate[T], bool) {
	var best Candidate[T]
	if len(candidates) == 0 {
		return best, false
	}
	best = candidates[0]
	for _, c := range candidates[1:] {
		if c.Priority > best.Priority || (c.Priority == best.Priority && c.order < best.order) {
			best = c
		}
	}
	return best, true
}

// splitLines splits text into lines, dropping carriage returns
func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
