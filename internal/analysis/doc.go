// Package analysis post-processes a calibration run.
//
//   - [Process]: force and strain errors per row, the curve extrapolated to the
//     peak model strain, and the zero row, sorted by strain
//   - [Check]: rows whose errors exceed the convergence criteria
//   - [Validate]: replays experimental displacements through the oracle with
//     the calibrated curve
//
// # Extrapolation
//
// The final point continues the curve to the largest strain the simulator
// reported, along the mean true-stress gradient of the last (up to) three
// segments:
//
//	results, err := analysis.Process(rows)
//	curve := analysis.Curve(results, material.ReferenceTemperature)
package analysis
