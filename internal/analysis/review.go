package analysis

import "math"

// Review lists the solved rows that miss a convergence criterion.
type Review struct {
	ForceTolerance  float64  `json:"force_tolerance"`  // N
	StrainTolerance float64  `json:"strain_tolerance"` // percent
	ForceMisses     []Result `json:"force_misses,omitempty"`
	StrainMisses    []Result `json:"strain_misses,omitempty"`
	Checked         int      `json:"checked"`
}

func (r Review) OK() bool {
	return len(r.ForceMisses) == 0 && len(r.StrainMisses) == 0
}

// Check compares every solved row against |force error| < forceTol (N) and
// |strain error| <= strainTolPct (percent), the same tests the search converges on.
func Check(results []Result, forceTol, strainTolPct float64) Review {
	rv := Review{ForceTolerance: forceTol, StrainTolerance: strainTolPct}
	for _, r := range Solved(results) {
		rv.Checked++
		if !(math.Abs(r.ForceError) < forceTol) {
			rv.ForceMisses = append(rv.ForceMisses, r)
		}
		if math.Abs(r.StrainErrorPct) > strainTolPct {
			rv.StrainMisses = append(rv.StrainMisses, r)
		}
	}
	return rv
}

// MeanAbsForceError is the mean |force error| over solved rows.
func MeanAbsForceError(results []Result) float64 {
	s := Solved(results)
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, r := range s {
		sum += math.Abs(r.ForceError)
	}
	return sum / float64(len(s))
}
