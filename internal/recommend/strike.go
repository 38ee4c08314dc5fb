package recommend

import (
	"math"
	"time"

	"github.com/newthinker/analog/internal/core"
)

// GridIncrement is the synthetic strike spacing used when no chain is available.
func GridIncrement(spot float64) float64 {
	switch {
	case spot < 100:
		return 0.5
	case spot < 500:
		return 1
	default:
		return 5
	}
}

// SnapToListed picks the strike nearest to desired among those between spot
// and bound, the full historical move. A PUT strike never sits above spot and
// a CALL strike never below it. Ties go to the strike closer to spot.
func SnapToListed(desired, bound, spot float64, ot core.OptionType, strikes []float64) (float64, bool) {
	best, found := 0.0, false
	for _, s := range strikes {
		if s <= 0 || beyond(s, bound, ot) || inTheMoney(s, spot, ot) {
			continue
		}
		if !found {
			best, found = s, true
			continue
		}
		d, bd := math.Abs(s-desired), math.Abs(best-desired)
		if d < bd || (d == bd && math.Abs(s-spot) < math.Abs(best-spot)) {
			best = s
		}
	}
	return best, found
}

// SnapToGrid snaps desired onto a grid of the given increment under the same
// rules as SnapToListed. It reports false when no grid point lies between
// spot and bound.
func SnapToGrid(desired, bound, spot float64, ot core.OptionType, inc float64) (float64, bool) {
	if inc <= 0 {
		return 0, false
	}
	lo := math.Floor(desired/inc) * inc
	return SnapToListed(desired, bound, spot, ot, []float64{lo, lo + inc})
}

func beyond(strike, bound float64, ot core.OptionType) bool {
	if ot == core.OptionPut {
		return strike < bound
	}
	return strike > bound
}

func inTheMoney(strike, spot float64, ot core.OptionType) bool {
	if ot == core.OptionPut {
		return strike > spot
	}
	return strike < spot
}

// NearestExpiry returns the earliest expiry of the given type in [from, to].
func NearestExpiry(contracts []core.OptionContract, ot core.OptionType, from, to time.Time) (time.Time, bool) {
	lo, hi := core.Day(from), core.Day(to)
	var best time.Time
	found := false
	for _, c := range contracts {
		if c.Type != ot {
			continue
		}
		e := core.Day(c.Expiry)
		if e.Before(lo) || e.After(hi) {
			continue
		}
		if !found || e.Before(best) {
			best, found = e, true
		}
	}
	return best, found
}
