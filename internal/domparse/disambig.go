package domparse

import (
	"strconv"
	"strings"
)

type tokenPair struct {
	start string
	end   string
}

// resolveState carries shared data between strategies: the start token
// recovered from the reliable fragment and the surviving end-time
// candidate list, narrowed as strategies run.
type resolveState struct {
	raw        RawEvent
	startToken string
	candidates []string
}

// strategy inspects the state and either resolves the token pair,
// passes (resolved == false) so the next strategy runs, or fails.
type strategy struct {
	name string
	run  func(*resolveState) (pair tokenPair, resolved bool, err *ParseError)
}

// The chain order is policy, tuned against observed label fixtures:
// minute-bearing candidates are preferred before day numbers are
// eliminated. A label shape that survives the whole chain fails
// explicitly rather than guessing.
var strategies = []strategy{
	{"fragment-pair", strategyFragmentPair},
	{"single-candidate", strategySingleCandidate},
	{"prefer-long", strategyPreferLong},
	{"drop-today", strategyDropToday},
	{"drop-clipped-neighbor", strategyDropClippedNeighbor},
}

// resolveTokens narrows the label's time-like tokens down to exactly one
// start and one end token.
func resolveTokens(raw RawEvent) (tokenPair, *ParseError) {
	st := &resolveState{raw: raw}
	for _, s := range strategies {
		pair, resolved, err := s.run(st)
		if err != nil {
			err.Msg = s.name + ": " + err.Msg
			return tokenPair{}, err
		}
		if resolved {
			return pair, nil
		}
	}
	return tokenPair{}, newError(KindAmbiguity,
		"unresolved end time for label %q: candidates remaining %v", raw.Aria, st.candidates)
}

// strategyFragmentPair uses the reliable fragment alone when it carries
// exactly a start and an end token. This is the cheapest and by far the
// most common case. It also pins down the start token for every later
// strategy.
func strategyFragmentPair(st *resolveState) (tokenPair, bool, *ParseError) {
	toks := TimeTokenList(st.raw.Times)
	if len(toks) == 0 {
		return tokenPair{}, false, newError(KindExtraction,
			"start fragment %q contains no time tokens", st.raw.Times)
	}
	st.startToken = toks[0]
	if len(toks) == 2 {
		return tokenPair{start: toks[0], end: toks[1]}, true, nil
	}
	return tokenPair{}, false, nil
}

// strategySingleCandidate extracts end-time candidates from the label
// text with the summary excluded and the known start token removed, and
// resolves immediately when exactly one candidate survives.
func strategySingleCandidate(st *resolveState) (tokenPair, bool, *ParseError) {
	cut, skip := locateSummary(st.raw.Aria, st.raw.Summary)

	cands := TimeTokenList(st.raw.Aria[:cut])
	if len(cands) == 0 && cut < len(st.raw.Aria) {
		// Right-to-left layouts put the time range after the summary.
		cands = TimeTokenList(st.raw.Aria[cut+skip:])
	}
	if len(cands) == 0 {
		return tokenPair{}, false, newError(KindExtraction,
			"no time tokens in label %q outside summary", st.raw.Aria)
	}

	cands, _ = removeFirst(cands, func(t string) bool { return t == st.startToken })
	if len(cands) == 0 {
		return tokenPair{}, false, newError(KindExtraction,
			"no end-time candidates in label %q after removing start token %q", st.raw.Aria, st.startToken)
	}

	st.candidates = cands
	if len(cands) == 1 {
		return tokenPair{start: st.startToken, end: cands[0]}, true, nil
	}
	return tokenPair{}, false, nil
}

// strategyPreferLong prefers a candidate that carries an explicit minute
// component. Bare one/two-digit leftovers are usually contaminating day
// numbers; an end time this ambiguous would normally carry minutes.
func strategyPreferLong(st *resolveState) (tokenPair, bool, *ParseError) {
	var long []string
	for _, c := range st.candidates {
		if len(c) > 2 {
			long = append(long, c)
		}
	}
	switch len(long) {
	case 0:
		return tokenPair{}, false, nil
	case 1:
		return tokenPair{start: st.startToken, end: long[0]}, true, nil
	default:
		return tokenPair{}, false, newError(KindAmbiguity,
			"multiple minute-bearing end candidates %v in label %q", long, st.raw.Aria)
	}
}

// strategyDropToday removes one occurrence of the current column's day
// number from the remaining short candidates.
func strategyDropToday(st *resolveState) (tokenPair, bool, *ParseError) {
	cands, _ := removeFirst(st.candidates, matchesDay(st.raw.DayNumber))
	st.candidates = cands
	if len(cands) == 1 {
		return tokenPair{start: st.startToken, end: cands[0]}, true, nil
	}
	return tokenPair{}, false, nil
}

// strategyDropClippedNeighbor handles multi-day events, whose labels
// carry a second date: the adjacent day number chosen by the clipping
// direction is removed, and exactly one candidate must remain.
func strategyDropClippedNeighbor(st *resolveState) (tokenPair, bool, *ParseError) {
	day := st.raw.DayNumber
	switch {
	case st.raw.TouchesTop:
		day = st.raw.PrevDayNumber
	case st.raw.TouchesBottom:
		day = st.raw.NextDayNumber
	}

	cands, _ := removeFirst(st.candidates, matchesDay(day))
	st.candidates = cands
	if len(cands) == 1 {
		return tokenPair{start: st.startToken, end: cands[0]}, true, nil
	}
	return tokenPair{}, false, newError(KindAmbiguity,
		"day-number elimination left %d candidates %v in label %q", len(cands), cands, st.raw.Aria)
}

// locateSummary finds where the summary portion of the label begins,
// so that digits inside the summary never pollute time extraction. The
// last occurrence wins: a short summary can spuriously match earlier
// text. A summary wrapped in a locale's "no title" brackets is retried
// bare; a summary that cannot be located at all is treated as absent,
// which is safe because it then cannot contaminate extraction either.
func locateSummary(label, summary string) (cut, skip int) {
	if summary == "" {
		return len(label), 0
	}
	if i := strings.LastIndex(label, summary); i >= 0 {
		return i, len(summary)
	}
	if bare, ok := stripBrackets(summary); ok {
		if i := strings.LastIndex(label, bare); i >= 0 {
			return i, len(bare)
		}
	}
	return len(label), 0
}

// bracketPairs covers the "no title" wrapping conventions observed
// across locales.
var bracketPairs = map[rune]rune{
	'(': ')',
	'[': ']',
	'（': '）',
	'「': '」',
	'【': '】',
	'«': '»',
}

func stripBrackets(s string) (string, bool) {
	runes := []rune(s)
	if len(runes) < 2 {
		return s, false
	}
	closer, ok := bracketPairs[runes[0]]
	if !ok || runes[len(runes)-1] != closer {
		return s, false
	}
	return string(runes[1 : len(runes)-1]), true
}

func matchesDay(day int) func(string) bool {
	return func(tok string) bool {
		if len(tok) > 2 {
			return false
		}
		n, err := strconv.Atoi(tok)
		return err == nil && n == day
	}
}

// removeFirst returns the list with the first token matching the
// predicate removed, reporting whether a removal happened.
func removeFirst(toks []string, match func(string) bool) ([]string, bool) {
	for i, t := range toks {
		if match(t) {
			out := make([]string, 0, len(toks)-1)
			out = append(out, toks[:i]...)
			out = append(out, toks[i+1:]...)
			return out, true
		}
	}
	return toks, false
}
