// Package experiment runs one calibration end to end. It builds the oracle
// from the configuration, drives the searches, post-processes the rows and
// keeps everything under a run directory of the store.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/san-kum/ifd/internal/analysis"
	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/config"
	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/export"
	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/logx"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/metrics"
	"github.com/san-kum/ifd/internal/oracle"
	"github.com/san-kum/ifd/internal/storage"
)

// Options attach operator-facing collaborators to a run.
type Options struct {
	Console  io.Writer // console lines; nil keeps them in the log file only
	Plain    bool      // write console lines without styling
	Sinks    []ledger.Sink
	Observer calib.Observer
	Registry *oracle.Registry // nil uses oracle.NewRegistry
	NoPlots  bool
}

// Outcome is everything a finished (or aborted) run produced.
type Outcome struct {
	Run     *storage.Run
	Meta    *storage.RunMetadata
	Rows    []calib.OutputRow
	Results []analysis.Result
	Review  analysis.Review
	Curve   []material.Point
	Plots   []string
}

type Experiment struct {
	cfg   *config.Config
	store *storage.Store
	opts  Options
}

func New(cfg *config.Config, store *storage.Store, opts Options) *Experiment {
	if opts.Registry == nil {
		opts.Registry = oracle.NewRegistry()
	}
	return &Experiment{cfg: cfg, store: store, opts: opts}
}

// preparer is implemented by simulators that stage a working copy before the first run.
type preparer interface {
	Prepare(ctx context.Context) error
}

// Oracle builds the retrying oracle with scratch files under workDir.
func (e *Experiment) Oracle(ctx context.Context, workDir string, log *logx.Logger) (*oracle.Runner, error) {
	sim, err := e.opts.Registry.Get(e.cfg.Oracle.Spec, workDir)
	if err != nil {
		return nil, err
	}
	if p, ok := sim.(preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return nil, fmt.Errorf("experiment: prepare %s oracle: %w", e.cfg.Oracle.Kind, err)
		}
	}
	return oracle.NewRunner(sim, e.cfg.Runner(), log), nil
}

// Run calibrates the configured input. A run that aborts part-way still
// saves its metadata and whatever rows were solved; the error is returned
// alongside the outcome.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	rows, err := dataset.Load(e.cfg.Input)
	if err != nil {
		return nil, err
	}
	if err := e.store.Init(); err != nil {
		return nil, err
	}
	run, err := e.store.Create(e.cfg.Name)
	if err != nil {
		return nil, err
	}

	log, err := logx.New(run.Path(storage.LogFile), e.opts.Console)
	if err != nil {
		return nil, err
	}
	defer log.Close()
	if e.opts.Plain {
		log.SetConsole(e.opts.Console, true)
	}

	meta := &storage.RunMetadata{
		Name:      e.cfg.Name,
		Timestamp: time.Now(),
		Input:     e.cfg.Input,
		Oracle:    e.cfg.Oracle.Kind,
		Status:    storage.StatusRunning,
	}
	if err := run.SaveMetadata(meta); err != nil {
		return nil, err
	}
	out := &Outcome{Run: run, Meta: meta}

	runner, err := e.Oracle(ctx, run.Path(storage.SimDir), log)
	if err != nil {
		return out, e.abort(out, log, err)
	}

	csvSink, err := ledger.NewCSVSink(run.Path(storage.DiagnosticDir))
	if err != nil {
		return out, e.abort(out, log, err)
	}
	mset := metrics.Default()
	sink := append(ledger.Multi{csvSink, mset}, e.opts.Sinks...)

	d := calib.NewDriver(runner, e.cfg.Calib(), log, sink)
	d.Observer = e.opts.Observer

	log.Console("calibration started", "run", run.ID, "rows", len(rows), "oracle", e.cfg.Oracle.Kind)
	calibRows, sum, runErr := d.Run(ctx, rows)
	out.Rows = calibRows
	out.Curve = d.Curve()
	meta.Summary = sum
	meta.Metrics = mset.Values()
	meta.Metrics["oracle_retries"] = float64(runner.Retries())

	if err := e.finish(out, log); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return out, e.abort(out, log, runErr)
	}

	meta.Status = storage.StatusComplete
	if err := run.SaveMetadata(meta); err != nil {
		return out, err
	}
	log.Success("run saved", "dir", run.Dir)
	return out, nil
}

// finish post-processes whatever rows were solved and stores the results.
func (e *Experiment) finish(out *Outcome, log *logx.Logger) error {
	results, err := analysis.Process(out.Rows)
	if errors.Is(err, analysis.ErrNoSolvedRows) {
		log.Warn("no solved rows to post-process")
		return nil
	}
	if err != nil {
		return err
	}
	out.Results = results
	if err := out.Run.SaveResults(results); err != nil {
		return err
	}

	c := e.cfg.Calib()
	out.Review = analysis.Check(results, c.ForceTolerance(), c.StrainTolerance*100)
	out.Meta.Metrics["mean_abs_force_error"] = analysis.MeanAbsForceError(results)
	out.Meta.Metrics["force_misses"] = float64(len(out.Review.ForceMisses))
	out.Meta.Metrics["strain_misses"] = float64(len(out.Review.StrainMisses))

	if e.opts.NoPlots {
		return nil
	}
	plots, err := export.Results(out.Run.Path(storage.ResultsDir), results)
	if err != nil {
		return err
	}
	out.Plots = plots
	return nil
}

func (e *Experiment) abort(out *Outcome, log *logx.Logger, cause error) error {
	out.Meta.Status = storage.StatusAborted
	out.Meta.Error = cause.Error()
	if out.Meta.Metrics == nil {
		out.Meta.Metrics = map[string]float64{}
	}
	log.Warn("run aborted", "err", cause)
	if err := out.Run.SaveMetadata(out.Meta); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
