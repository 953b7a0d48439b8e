package calib

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/numeric"
	"github.com/san-kum/ifd/internal/oracle"
)

// StressSearch finds the true stress at a row's plastic strain that makes the
// oracle report the experimental force at the experimental strain.
type StressSearch struct {
	Disp           *DisplacementSearch
	Log            Logger
	Sink           ledger.Sink
	ForceTolerance float64 // N
	Growth         float64 // stress scale when no estimate is possible
	MaxAttempts    int
}

func NewStressSearch(disp *DisplacementSearch, cfg Config, log Logger, sink ledger.Sink) *StressSearch {
	if log == nil {
		log = nopLogger{}
	}
	if sink == nil {
		sink = ledger.Discard
	}
	return &StressSearch{
		Disp:           disp,
		Log:            log,
		Sink:           sink,
		ForceTolerance: cfg.ForceTolerance(),
		Growth:         cfg.DisplacementGrowth,
		MaxAttempts:    cfg.MaxStressAttempts,
	}
}

// StressInput describes one row's stress search.
type StressInput struct {
	Row          int
	Exp          dataset.Row
	TargetStrain float64 // rounded experimental total strain
	Start        float64 // first trial stress
	Floor        float64 // finalized stress of the previous row
	StartDisp    float64
	Curve        *material.Curve
	Elastic      material.Elastic
}

// StressResult is the outcome of one row's stress search. When the search
// stagnates on a stress it already tried, Stress and Response come from that
// earlier trial, not the latest oracle call. Response always belongs to the
// stress left on the curve.
type StressResult struct {
	Stress    float64
	Response  oracle.Response
	LastDisp  float64 // last displacement tried, the start of the next search
	Converged bool
	StrainMet bool
	Trials    ledger.StressTrials
	Shortfall error // wraps ErrToleranceNotMet when the row was not converged
}

// Run places the row's trial point on the curve and iterates trial stresses.
// On return the curve's trial point carries the returned stress.
func (s *StressSearch) Run(ctx context.Context, in StressInput) (StressResult, error) {
	var res StressResult
	stress := in.Start
	disp := in.StartDisp

	if err := in.Curve.BeginRow(in.Exp.PlasticStrain, stress); err != nil {
		return res, &RowError{Row: in.Row, Wrapped: fmt.Errorf("calib: begin row: %w", err)}
	}

	for try := 1; ; try++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.Log.Console("trying stress", "row", in.Row, "stress_try", try, "stress_mpa", numeric.Round(stress/1e6, 3))

		dr, err := s.Disp.Run(ctx, DisplacementInput{
			Row:          in.Row,
			StressTry:    try,
			Stress:       stress,
			TargetStrain: in.TargetStrain,
			Start:        disp,
			Curve:        in.Curve,
			Elastic:      in.Elastic,
		})
		if err != nil {
			return res, &RowError{Row: in.Row, StressTry: try, Wrapped: err}
		}
		disp = dr.LastTried

		r := dr.Response
		st := ledger.StressTrial{
			Row:          in.Row,
			StressTry:    try,
			Iteration:    s.Disp.Calls(),
			Stress:       stress,
			Force:        r.Force,
			Strain:       r.Strain,
			Displacement: r.Displacement,
			MaxStrain:    r.MaxStrain,
			StrainErrPct: ledger.StrainErrorPct(r.Strain, in.TargetStrain),
			ForceDelta:   r.Force - in.Exp.Force,
			StrainMet:    dr.Converged,
		}
		res.Trials = res.Trials.Append(st)
		res.Stress = stress
		res.Response = r
		res.LastDisp = disp
		res.StrainMet = dr.Converged
		if err := s.Sink.RecordStress(st); err != nil {
			return res, fmt.Errorf("calib: record stress trial: %w", err)
		}

		if math.Abs(st.ForceDelta) < s.ForceTolerance {
			res.Converged = true
			s.Log.Console("stress value accepted, force tolerance met",
				"row", in.Row, "stress", stress, "force", r.Force, "target", in.Exp.Force)
			return res, nil
		}

		if try >= s.MaxAttempts {
			res.Shortfall = fmt.Errorf("%w: row %d force off by %.4g N after %d stress tries",
				ErrToleranceNotMet, in.Row, st.ForceDelta, try)
			s.Log.Warn("force tolerance not met, moving to next point; review error manually later",
				"row", in.Row, "tries", try, "force_delta", st.ForceDelta)
			return res, nil
		}

		next, err := s.next(in.Exp.Force, stress, res.Trials)
		if err != nil {
			return res, &RowError{Row: in.Row, StressTry: try, Wrapped: err}
		}
		if next < in.Floor {
			s.Log.Diagnostic("rejected stress lower than the previous point", "proposed", next, "floor", in.Floor)
			next = in.Floor
		}
		if err := in.Curve.SetTrial(in.Exp.PlasticStrain, next); err != nil {
			return res, &RowError{Row: in.Row, StressTry: try, Wrapped: err}
		}

		if prev, ok := res.Trials.Tried(next); ok {
			res.Stress = next
			res.Response = oracle.Response{
				Strain:       prev.Strain,
				Force:        prev.Force,
				Displacement: prev.Displacement,
				MaxStrain:    prev.MaxStrain,
			}
			res.StrainMet = prev.StrainMet
			res.Shortfall = fmt.Errorf("%w: row %d stagnated at %.3f Pa, force off by %.4g N",
				ErrToleranceNotMet, in.Row, next, prev.ForceDelta)
			s.Log.Warn("already tried that stress value and it is the lowest allowable; force tolerance not met, moving to next point",
				"row", in.Row, "stress", next, "force_delta", prev.ForceDelta)
			return res, nil
		}
		stress = next
	}
}

func (s *StressSearch) next(target, last float64, trials ledger.StressTrials) (float64, error) {
	if len(trials) == 1 {
		f := trials[0].Force
		if f == 0 {
			s.Log.Diagnostic("zero force observed, scaling stress", "growth", s.Growth)
			return numeric.Round(last*s.Growth, 3), nil
		}
		return numeric.Round(target/f*last, 3), nil
	}

	v, b, err := numeric.Estimate(target, trials.ForceObs())
	switch {
	case errors.Is(err, numeric.ErrCoincident):
		s.Log.Diagnostic("observed forces coincide, scaling stress", "growth", s.Growth)
		return numeric.Round(last*s.Growth, 3), nil
	case err != nil:
		return 0, fmt.Errorf("calib: force bracket: %w", err)
	}

	if b == numeric.Between {
		s.Log.Diagnostic("interpolated for stress value", "bracket", b)
	} else {
		s.Log.Diagnostic("extrapolated for stress value", "bracket", b)
	}
	return numeric.Round(v, 3), nil
}
