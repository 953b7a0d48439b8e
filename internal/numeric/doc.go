// Package numeric holds the small numeric helpers shared by the calibration
// searches: two-point linear interpolation, bracket classification of a
// target against a set of observations, and decimal rounding.
//
// Observations are (X, Y) pairs where X is the quantity being matched (a
// strain or a force) and Y is the input that produced it (a displacement or a
// stress). [Estimate] picks the right pair of observations for a target X and
// returns the linear estimate of Y there.
package numeric
