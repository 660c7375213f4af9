package domparse

import "fmt"

// Kind classifies why a DOM-derived event could not be parsed. All kinds
// are recoverable: the caller falls back to the network fetch path for
// the affected range instead of treating the failure as fatal.
type Kind int

const (
	// KindExtraction: no time-like tokens could be found at all.
	KindExtraction Kind = iota
	// KindAmbiguity: several end-time candidates survived every
	// disambiguation heuristic.
	KindAmbiguity
	// KindStructural: an expected layout landmark (column, grid,
	// container) is missing or mis-counted.
	KindStructural
	// KindNumeric: a resolved token still normalized to NaN.
	KindNumeric
)

func (k Kind) String() string {
	switch k {
	case KindExtraction:
		return "extraction"
	case KindAmbiguity:
		return "ambiguity"
	case KindStructural:
		return "structural"
	case KindNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// ParseError is the value returned instead of a panic or a bare string
// when DOM-derived data cannot be turned into a parsed event. Msg keeps
// enough context to identify which step gave up.
type ParseError struct {
	Kind Kind
	Msg  string
}

func (e *ParseError) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

func newError(kind Kind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
