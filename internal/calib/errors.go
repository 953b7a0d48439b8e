package calib

import (
	"errors"
	"fmt"
)

var (
	// ErrToleranceNotMet marks a row finalized without meeting its strain or force tolerance.
	ErrToleranceNotMet = errors.New("calib: tolerance not met")

	// ErrCurveShape indicates the material curve lost its finalized+2 shape during a trial.
	ErrCurveShape = errors.New("calib: material curve has unexpected shape")

	// ErrTooFewRows indicates there is no row to calibrate after the yield point.
	ErrTooFewRows = errors.New("calib: need the yield row and at least one more")
)

// RowError wraps a fatal error with the row being solved when it happened.
// StressTry is zero when the row failed before its first stress trial.
type RowError struct {
	Row       int
	StressTry int
	Wrapped   error
}

func (e *RowError) Error() string {
	if e.StressTry == 0 {
		return fmt.Sprintf("row %d: %v", e.Row, e.Wrapped)
	}
	return fmt.Sprintf("row %d, stress try %d: %v", e.Row, e.StressTry, e.Wrapped)
}

func (e *RowError) Unwrap() error {
	return e.Wrapped
}
