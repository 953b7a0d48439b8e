package calib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/numeric"
	"github.com/san-kum/ifd/internal/oracle"
)

// Driver calibrates every row of an experimental dataset in strain order.
type Driver struct {
	Oracle   oracle.Oracle
	Config   Config
	Log      Logger
	Sink     ledger.Sink
	Observer Observer

	curve *material.Curve
}

func NewDriver(o oracle.Oracle, cfg Config, log Logger, sink ledger.Sink) *Driver {
	return &Driver{Oracle: o, Config: cfg, Log: log, Sink: sink}
}

// Curve is the material curve of the last run: after Run returns it holds
// every finalized row followed by the synthetic tail.
func (d *Driver) Curve() []material.Point {
	if d.curve == nil {
		return nil
	}
	return d.curve.Points()
}

// Run solves rows 1..n. Row 0 is the yield point and is taken as given.
// When the oracle fails for good, the rows solved so far are returned together
// with a *RowError; rows after the failing one keep Solved false.
func (d *Driver) Run(ctx context.Context, rows []dataset.Row) ([]OutputRow, Summary, error) {
	start := time.Now()
	if len(rows) < 2 {
		return nil, Summary{}, ErrTooFewRows
	}
	if err := d.Config.Validate(); err != nil {
		return nil, Summary{}, err
	}

	log := d.Log
	if log == nil {
		log = nopLogger{}
	}
	obs := d.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	sink := d.Sink
	if sink == nil {
		sink = ledger.Discard
	}

	disp := NewDisplacementSearch(d.Oracle, d.Config, log, sink)
	stress := NewStressSearch(disp, d.Config, log, sink)

	out := make([]OutputRow, len(rows))
	for i, r := range rows {
		out[i] = OutputRow{Row: r, TrueStress: r.StartStress}
	}
	out[0].Yield = true
	out[0].Solved = true
	out[0].Converged = true
	out[0].Note = "yield point"

	d.curve = material.NewCurve(d.Config.Elastic.Temp)
	d.curve.Seed(rows[0].PlasticStrain, out[0].TrueStress)
	log.Console("yield parameters entered", "strain", rows[0].PlasticStrain, "stress", out[0].TrueStress)

	sum := Summary{Rows: len(rows) - 1}
	finish := func() Summary {
		sum.Invocations = disp.Calls()
		sum.Elapsed = time.Since(start)
		return sum
	}

	startDisp := rows[1].EstDisplacement
	last := len(rows) - 1
	for i := 1; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return out, finish(), err
		}
		enforceMonotonic(out, log)

		target := numeric.Round(out[i].TotalStrain, 6)
		log.Console("solving row", "row", i, "of", last, "target_strain", target, "target_force", out[i].Force)
		obs.RowStarted(i, last, target, out[i].Force)
		before := disp.Calls()

		res, err := stress.Run(ctx, StressInput{
			Row:          i,
			Exp:          rows[i],
			TargetStrain: target,
			Start:        out[i].TrueStress,
			Floor:        out[i-1].TrueStress,
			StartDisp:    startDisp,
			Curve:        d.curve,
			Elastic:      d.Config.Elastic,
		})
		if err != nil {
			var re *RowError
			if !errors.As(err, &re) {
				err = &RowError{Row: i, Wrapped: err}
			}
			log.Warn("run aborted", "row", i, "err", err)
			return out, finish(), err
		}
		startDisp = res.LastDisp

		o := &out[i]
		o.TrueStress = res.Stress
		o.FEAStrain = res.Response.Strain
		o.FEAForce = res.Response.Force
		o.FEADisplacement = res.Response.Displacement
		o.MaxStrain = res.Response.MaxStrain
		o.Solved = true
		o.Converged = res.Converged
		o.StrainMet = res.StrainMet
		o.StressTries = len(res.Trials)
		o.Invocations = disp.Calls() - before
		if res.Shortfall != nil {
			o.Note = res.Shortfall.Error()
			sum.Failed = append(sum.Failed, i)
		} else if !res.StrainMet {
			o.Note = fmt.Sprintf("strain tolerance not met (%.3f %%)", ledger.StrainErrorPct(o.FEAStrain, target))
		}
		sum.Solved++
		if o.Converged {
			sum.Converged++
		}
		obs.RowFinished(*o)
	}

	sum = finish()
	log.Console("iterative procedure complete", "rows", sum.Rows, "converged", sum.Converged, "invocations", sum.Invocations)
	return out, sum, nil
}

// enforceMonotonic raises every stress that is lower than its predecessor's.
func enforceMonotonic(rows []OutputRow, log Logger) {
	for a := 1; a < len(rows); a++ {
		if rows[a].TrueStress < rows[a-1].TrueStress {
			log.Diagnostic("amended initial stress value lower than the previous point",
				"row", a, "from", rows[a].TrueStress, "to", rows[a-1].TrueStress)
			rows[a].TrueStress = rows[a-1].TrueStress
		}
	}
}
