package domparse

import (
	"math"
	"strconv"
)

// NormalizeClock converts one extracted token into a fractional hour in
// [0, 24). A token of at most two digits is a bare hour; anything longer
// splits into hour digits plus a trailing two-digit minute component.
//
// Values below 13 are treated as 12-hour notation and folded with the
// am/pm hint; 13 and above are already unambiguous 24-hour values and
// pass through unchanged. The minute fraction is kept out of the modulo
// so it survives the fold, and the result is rounded to two decimals to
// absorb float drift from the /60 division.
//
// Returns NaN when the token is not numeric.
func NormalizeClock(token string, isAM bool) float64 {
	var hour, frac float64

	if len(token) <= 2 {
		h, err := strconv.Atoi(token)
		if err != nil {
			return math.NaN()
		}
		hour = float64(h)
	} else {
		h, err := strconv.Atoi(token[:len(token)-2])
		if err != nil {
			return math.NaN()
		}
		m, err := strconv.Atoi(token[len(token)-2:])
		if err != nil {
			return math.NaN()
		}
		hour = float64(h)
		frac = float64(m) / 60
	}

	if hour >= 13 {
		return round2(hour + frac)
	}

	h := math.Mod(hour, 12)
	if !isAM {
		h += 12
	}
	return round2(h + frac)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
