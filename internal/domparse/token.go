package domparse

import (
	"iter"
	"regexp"
	"slices"
)

// clockToken matches one clock-like digit group: one or two digits,
// optionally followed by a single separator and exactly two more digits.
// The separator may be any non-digit rune except hyphen-like punctuation
// (dashes separate time ranges, never digit groups), so ":", "." and
// other locale punctuation all qualify.
var clockToken = regexp.MustCompile(`([0-9]{1,2})(?:[^0-9\p{Pd}\x{2212}]([0-9]{2}))?`)

// TimeTokens yields, in order of appearance, every clock-like token in
// s after digit normalization. Tokens carry digits only: a matched
// separator is dropped, so "12:30" yields "1230" and "9" yields "9".
// The sequence is finite and restartable; order is meaningful and is
// relied on for positional disambiguation.
func TimeTokens(s string) iter.Seq[string] {
	norm := NormalizeDigits(s)
	return func(yield func(string) bool) {
		rest := norm
		for rest != "" {
			loc := clockToken.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			tok := rest[loc[2]:loc[3]]
			if loc[4] >= 0 {
				tok += rest[loc[4]:loc[5]]
			}
			if !yield(tok) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}

// TimeTokenList collects TimeTokens into a slice.
func TimeTokenList(s string) []string {
	return slices.Collect(TimeTokens(s))
}
