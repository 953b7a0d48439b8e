package calib

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/numeric"
	"github.com/san-kum/ifd/internal/oracle"
)

// DisplacementSearch finds the displacement at which the oracle reports a
// target strain for a fixed material curve.
type DisplacementSearch struct {
	Oracle      oracle.Oracle
	Log         Logger
	Sink        ledger.Sink
	Tolerance   float64 // relative strain tolerance
	Growth      float64 // displacement scale after the first miss
	MaxAttempts int

	calls int
}

func NewDisplacementSearch(o oracle.Oracle, cfg Config, log Logger, sink ledger.Sink) *DisplacementSearch {
	if log == nil {
		log = nopLogger{}
	}
	if sink == nil {
		sink = ledger.Discard
	}
	return &DisplacementSearch{
		Oracle:      o,
		Log:         log,
		Sink:        sink,
		Tolerance:   cfg.StrainTolerance,
		Growth:      cfg.DisplacementGrowth,
		MaxAttempts: cfg.MaxDispAttempts,
	}
}

// Calls is the number of oracle evaluations made through this search.
func (s *DisplacementSearch) Calls() int { return s.calls }

// DisplacementInput is one displacement search: which trial it belongs to,
// what to hit, and where to start.
type DisplacementInput struct {
	Row          int
	StressTry    int
	Stress       float64
	TargetStrain float64
	Start        float64
	Curve        *material.Curve
	Elastic      material.Elastic
}

type DisplacementResult struct {
	Response  oracle.Response // last oracle observation
	LastTried float64         // displacement passed to the oracle for Response
	Trials    ledger.Trials
	Converged bool
}

// WithinStrain reports whether strain lies within tol (relative) of target, bounds included.
func WithinStrain(strain, target, tol float64) bool {
	return math.Abs(strain-target) <= tol*math.Abs(target)
}

// Run evaluates the oracle until the strain tolerance is met or MaxAttempts
// evaluations have been made. Missing the tolerance is not an error: the last
// observation is returned with Converged false.
func (s *DisplacementSearch) Run(ctx context.Context, in DisplacementInput) (DisplacementResult, error) {
	var res DisplacementResult
	disp := in.Start

	for attempt := 1; ; attempt++ {
		if err := checkShape(in.Curve, in.Row); err != nil {
			return res, err
		}

		s.Log.Console("trying displacement", "row", in.Row, "stress_try", in.StressTry, "disp_try", attempt, "displacement", disp)
		resp, err := s.Oracle.Evaluate(ctx, oracle.Request{
			Displacement: disp,
			Curve:        in.Curve.Points(),
			Elastic:      in.Elastic,
		})
		if err != nil {
			return res, err
		}
		s.calls++

		tr := ledger.Trial{
			Row:          in.Row,
			StressTry:    in.StressTry,
			DispTry:      attempt,
			Iteration:    s.calls,
			Stress:       in.Stress,
			TrialDisp:    disp,
			Force:        resp.Force,
			Strain:       resp.Strain,
			Displacement: resp.Displacement,
			MaxStrain:    resp.MaxStrain,
			StrainErrPct: ledger.StrainErrorPct(resp.Strain, in.TargetStrain),
		}
		res.Trials = res.Trials.Append(tr)
		res.Response = resp
		res.LastTried = disp
		if err := s.Sink.RecordTrial(tr); err != nil {
			return res, fmt.Errorf("calib: record trial: %w", err)
		}

		if WithinStrain(resp.Strain, in.TargetStrain, s.Tolerance) {
			res.Converged = true
			s.Log.Console("displacement accepted, strain target and tolerance met",
				"strain", resp.Strain, "target", in.TargetStrain, "attempts", attempt)
			return res, nil
		}

		if attempt >= s.MaxAttempts {
			s.Log.Warn("strain tolerance not met, review data after the run",
				"row", in.Row, "stress_try", in.StressTry, "attempts", attempt,
				"strain", resp.Strain, "target", in.TargetStrain)
			return res, nil
		}

		disp, err = s.next(in.TargetStrain, disp, res.Trials)
		if err != nil {
			return res, err
		}
	}
}

func (s *DisplacementSearch) next(target, last float64, trials ledger.Trials) (float64, error) {
	if len(trials) == 1 {
		return numeric.Round(last*s.Growth, 10), nil
	}

	d, b, err := numeric.Estimate(target, trials.StrainObs())
	switch {
	case errors.Is(err, numeric.ErrCoincident):
		s.Log.Diagnostic("observed strains coincide, scaling displacement", "growth", s.Growth)
		return numeric.Round(last*s.Growth, 10), nil
	case err != nil:
		return 0, fmt.Errorf("calib: strain bracket: %w", err)
	}

	if b == numeric.Between {
		s.Log.Diagnostic("interpolated for displacement value", "bracket", b)
	} else {
		s.Log.Diagnostic("extrapolated for displacement value", "bracket", b)
	}
	return numeric.Round(d, 10), nil
}

// checkShape verifies the curve holds row finalized points plus the trial and its tail.
func checkShape(c *material.Curve, row int) error {
	if c == nil {
		return fmt.Errorf("%w: no curve", ErrCurveShape)
	}
	if c.Finalized() != row || c.Len() != row+2 {
		return fmt.Errorf("%w: row %d has %d points, %d finalized", ErrCurveShape, row, c.Len(), c.Finalized())
	}
	return nil
}
