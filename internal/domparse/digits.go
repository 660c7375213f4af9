package domparse

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// digitZeros lists the zero codepoint of every decimal numeral block the
// normalizer understands. Each block is a contiguous run of ten digits,
// so any digit maps to ASCII by subtracting its block's zero.
var digitZeros = []rune{
	0x0660, // Arabic-Indic
	0x06F0, // Extended Arabic-Indic (Persian, Urdu)
	0x0966, // Devanagari
	0x09E6, // Bengali
	0x0A66, // Gurmukhi
	0x0AE6, // Gujarati
	0x0B66, // Oriya
	0x0BE6, // Tamil
	0x0C66, // Telugu
	0x0CE6, // Kannada
	0x0D66, // Malayalam
	0x0E50, // Thai
	0x0ED0, // Lao
	0x0F20, // Tibetan
	0x1040, // Myanmar
	0x17E0, // Khmer
	0xFF10, // Fullwidth
}

var digitMapper = runes.Map(func(r rune) rune {
	if r < 0x0660 {
		return r
	}
	for _, zero := range digitZeros {
		if r >= zero && r <= zero+9 {
			return '0' + (r - zero)
		}
	}
	return r
})

// NormalizeDigits rewrites digits from non-Latin numeral scripts to
// ASCII so that token extraction works on locales that render clock
// digits natively. Non-digit runes pass through untouched.
func NormalizeDigits(s string) string {
	out, _, err := transform.String(digitMapper, s)
	if err != nil {
		return s
	}
	return out
}
