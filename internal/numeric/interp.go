package numeric

import "math"

// Interpolate returns y at x on the line through (x1, y1) and (x2, y2).
func Interpolate(x1, x2, y1, y2, x float64) (float64, error) {
	if x1 == x2 {
		return 0, ErrCoincident
	}
	return y1 + (y2-y1)*(x-x1)/(x2-x1), nil
}

// Extrapolate is Interpolate for x outside [x1, x2]. The formula is the same;
// the separate name records intent at the call site.
func Extrapolate(x1, x2, y1, y2, x float64) (float64, error) {
	return Interpolate(x1, x2, y1, y2, x)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
