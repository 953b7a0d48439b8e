package experiment

import (
	"context"
	"errors"
	"os"

	"github.com/san-kum/ifd/internal/analysis"
	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/export"
	"github.com/san-kum/ifd/internal/logx"
	"github.com/san-kum/ifd/internal/storage"
)

// ValidationFile is written to the run's results directory.
const ValidationFile = "validation_results.csv"

var ErrNoValidationInput = errors.New("experiment: no validation force-displacement file configured")

// Validate replays the calibrated curve of a stored run against every
// measured force-displacement point and writes the comparison next to the
// run's results.
func (e *Experiment) Validate(ctx context.Context, runID string) ([]analysis.ValidationPoint, error) {
	if e.cfg.Validation == "" {
		return nil, ErrNoValidationInput
	}
	run, err := e.store.Open(runID)
	if err != nil {
		return nil, err
	}
	results, err := e.store.LoadResults(runID)
	if err != nil {
		return nil, err
	}
	fd, err := dataset.LoadForceDisplacement(e.cfg.Validation)
	if err != nil {
		return nil, err
	}

	log, err := logx.New(run.Path(storage.DiagnosticDir, "validation-log.txt"), e.opts.Console)
	if err != nil {
		return nil, err
	}
	defer log.Close()
	if e.opts.Plain {
		log.SetConsole(e.opts.Console, true)
	}

	runner, err := e.Oracle(ctx, run.Path(storage.SimDir), log)
	if err != nil {
		return nil, err
	}
	curve := analysis.Curve(results, e.cfg.Material.Temperature)
	log.Console("validation started", "run", runID, "points", len(fd), "curve_points", len(curve))

	pts, err := analysis.Validate(ctx, runner, curve, e.cfg.Elastic(), fd, log)
	if err != nil {
		return pts, err
	}

	f, err := os.Create(run.Path(storage.ResultsDir, ValidationFile))
	if err != nil {
		return pts, err
	}
	if err := analysis.WriteValidationCSV(f, pts); err != nil {
		f.Close()
		return pts, err
	}
	if err := f.Close(); err != nil {
		return pts, err
	}

	if !e.opts.NoPlots {
		p, err := export.ForceDisplacement(pts)
		if err != nil {
			return pts, err
		}
		if err := export.Save(p, run.Path(storage.ResultsDir, export.ForceDisplacementFile)); err != nil {
			return pts, err
		}
	}
	log.Success("validation complete", "points", len(pts)-1)
	return pts, nil
}
