// Package calib implements the iterative force-displacement calibration.
//
// For every experimental row after the yield point a StressSearch proposes
// trial stresses for the row's plastic strain. Each trial runs a
// DisplacementSearch that drives the oracle until the reported strain matches
// the row's total strain; the force reported at that displacement decides
// whether the trial stress is accepted. The Driver walks the rows in order
// and keeps the calibrated stresses non-decreasing.
//
// # Guess Policy
//
// Both searches use the same update rule. The first attempt takes the given
// starting value, the second scales it (by a fixed growth factor for
// displacements, by the force ratio for stresses), and every later attempt
// classifies the target against all observations so far and interpolates
// across the tightest bracket or extrapolates from the two closest
// observations.
//
// # Failure Modes
//
// A row that cannot meet its tolerances is finalized with its best-effort
// values and flagged; the run continues. Oracle failures and degenerate
// observation sets abort the run and are returned as a *RowError.
package calib
