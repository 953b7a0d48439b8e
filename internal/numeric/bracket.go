package numeric

import (
	"fmt"
	"math"
	"sort"
)

// Bracket describes where a target lies relative to a set of observations.
type Bracket int

const (
	// Greater: every observation is greater than the target.
	Greater Bracket = iota + 1
	// Lesser: every observation is less than the target.
	Lesser
	// Between: observations lie on both sides of the target, or one equals it.
	Between
)

func (b Bracket) String() string {
	switch b {
	case Greater:
		return "greater"
	case Lesser:
		return "lesser"
	case Between:
		return "between"
	default:
		return "unknown"
	}
}

// Obs is one observation: X is the matched quantity, Y the input that produced it.
type Obs struct {
	X, Y float64
}

// Classify places target against the X values of obs. An observation exactly
// equal to the target counts on both sides, so it always yields Between.
func Classify(target float64, obs []Obs) (Bracket, error) {
	if len(obs) == 0 {
		return 0, fmt.Errorf("%w: no observations", ErrDegenerateBracket)
	}
	if math.IsNaN(target) {
		return 0, fmt.Errorf("%w: target is NaN", ErrDegenerateBracket)
	}

	above, below := false, false
	for _, o := range obs {
		if math.IsNaN(o.X) {
			return 0, fmt.Errorf("%w: NaN observation", ErrDegenerateBracket)
		}
		if o.X >= target {
			above = true
		}
		if o.X <= target {
			below = true
		}
	}

	switch {
	case above && below:
		return Between, nil
	case above:
		return Greater, nil
	default:
		return Lesser, nil
	}
}

// Closest2 returns the two observations nearest to target by |X - target|,
// skipping any whose X repeats the nearest one, ordered by X ascending.
func Closest2(target float64, obs []Obs) (Obs, Obs, error) {
	if len(obs) < 2 {
		return Obs{}, Obs{}, fmt.Errorf("%w: need two observations, have %d", ErrDegenerateBracket, len(obs))
	}

	sorted := make([]Obs, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].X-target) < math.Abs(sorted[j].X-target)
	})

	first := sorted[0]
	for _, o := range sorted[1:] {
		if o.X != first.X {
			if o.X < first.X {
				return o, first, nil
			}
			return first, o, nil
		}
	}
	return Obs{}, Obs{}, ErrCoincident
}

// Tightest returns the observation with the largest X <= target and the one
// with the smallest X >= target. Both are the same observation when one
// matches the target exactly.
func Tightest(target float64, obs []Obs) (lo, hi Obs, err error) {
	haveLo, haveHi := false, false
	for _, o := range obs {
		if o.X <= target && (!haveLo || o.X > lo.X) {
			lo, haveLo = o, true
		}
		if o.X >= target && (!haveHi || o.X < hi.X) {
			hi, haveHi = o, true
		}
	}
	if !haveLo || !haveHi {
		return Obs{}, Obs{}, fmt.Errorf("%w: target %g is not bracketed", ErrDegenerateBracket, target)
	}
	return lo, hi, nil
}

// Estimate classifies target against obs and returns the linear estimate of Y
// at target: extrapolated from the two closest observations when the target
// lies outside them, interpolated across the tightest bracket otherwise.
func Estimate(target float64, obs []Obs) (float64, Bracket, error) {
	b, err := Classify(target, obs)
	if err != nil {
		return 0, 0, err
	}

	if b == Between {
		lo, hi, err := Tightest(target, obs)
		if err != nil {
			return 0, b, err
		}
		if lo.X == hi.X {
			return lo.Y, b, nil
		}
		y, err := Interpolate(lo.X, hi.X, lo.Y, hi.Y, target)
		return y, b, err
	}

	o1, o2, err := Closest2(target, obs)
	if err != nil {
		return 0, b, err
	}
	y, err := Extrapolate(o1.X, o2.X, o1.Y, o2.Y, target)
	return y, b, err
}
