// Package automation runs calibration jobs listed in a YAML batch file.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ifd/internal/config"
	"github.com/san-kum/ifd/internal/experiment"
	"github.com/san-kum/ifd/internal/storage"
)

// Batch is a sequence of calibrations sharing a base configuration.
type Batch struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Config      string `yaml:"config"` // base config, relative to the batch file
	DataDir     string `yaml:"data_dir"`
	StopOnError bool   `yaml:"stop_on_error"`
	Jobs        []Job  `yaml:"jobs"`

	dir string
}

// Job overrides parts of the base configuration for one calibration.
type Job struct {
	Name        string   `yaml:"name"`
	Input       string   `yaml:"input"`
	Validation  string   `yaml:"validation"`
	Preset      string   `yaml:"preset"`
	ModulusGPa  *float64 `yaml:"modulus_gpa"`
	Poisson     *float64 `yaml:"poisson"`
	Temperature *float64 `yaml:"temperature"`
	Area        *float64 `yaml:"area"`
	Oracle      string   `yaml:"oracle"`
	Validate    bool     `yaml:"validate"`
}

// JobResult is the outcome of one job. Err is nil when the run completed.
type JobResult struct {
	Job       string
	RunID     string
	Converged int
	Rows      int
	Validated int
	Err       error
}

// LoadBatch loads a batch file. Relative paths inside it resolve against its directory.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("automation: %s: %w", path, err)
	}
	if len(b.Jobs) == 0 {
		return nil, fmt.Errorf("automation: %s: no jobs", path)
	}
	b.dir = filepath.Dir(path)
	return &b, nil
}

func (b *Batch) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.dir, p)
}

// JobConfig builds the configuration of job i.
func (b *Batch) JobConfig(i int) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if b.Config != "" {
		loaded, err := config.Load(b.resolve(b.Config))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if b.DataDir != "" {
		cfg.DataDir = b.resolve(b.DataDir)
	}

	job := b.Jobs[i]
	if job.Name != "" {
		cfg.Name = job.Name
	} else {
		cfg.Name = fmt.Sprintf("%s-%d", b.Name, i+1)
	}
	if job.Input != "" {
		cfg.Input = b.resolve(job.Input)
	}
	if job.Validation != "" {
		cfg.Validation = b.resolve(job.Validation)
	}
	if job.Preset != "" {
		if err := cfg.ApplyPreset(job.Preset); err != nil {
			return nil, err
		}
	}
	if job.ModulusGPa != nil {
		cfg.Material.ModulusGPa = *job.ModulusGPa
	}
	if job.Poisson != nil {
		cfg.Material.Poisson = *job.Poisson
	}
	if job.Temperature != nil {
		cfg.Material.Temperature = *job.Temperature
	}
	if job.Area != nil {
		cfg.Tolerance.Area = *job.Area
	}
	if job.Oracle != "" {
		cfg.Oracle.Kind = job.Oracle
	}
	return cfg, cfg.Validate()
}

// Options are handed to every job's experiment.
type Options = experiment.Options

// RunBatch executes the jobs in order. A failed job is recorded in its
// JobResult; the batch continues unless StopOnError is set. Cancelling ctx
// stops the batch; the job in progress sees the cancellation too.
func RunBatch(ctx context.Context, b *Batch, opts Options, progress func(i, n int, job string)) ([]JobResult, error) {
	results := make([]JobResult, 0, len(b.Jobs))
	var failed []error

	for i := range b.Jobs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := b.runJob(ctx, i, opts, func(job string) {
			if progress != nil {
				progress(i, len(b.Jobs), job)
			}
		})
		results = append(results, res)
		if res.Err == nil {
			continue
		}
		if b.StopOnError {
			return results, res.Err
		}
		failed = append(failed, res.Err)
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, errors.Join(failed...)
}

func (b *Batch) runJob(ctx context.Context, i int, opts Options, report func(job string)) JobResult {
	cfg, err := b.JobConfig(i)
	if err != nil {
		return JobResult{Job: b.Jobs[i].Name, Err: fmt.Errorf("job %d: %w", i+1, err)}
	}
	report(cfg.Name)

	res := JobResult{Job: cfg.Name}
	exp := experiment.New(cfg, storage.New(cfg.DataDir), opts)

	out, err := exp.Run(ctx)
	if out != nil {
		res.RunID = out.Run.ID
		res.Rows = out.Meta.Summary.Rows
		res.Converged = out.Meta.Summary.Converged
	}
	if err != nil {
		res.Err = fmt.Errorf("job %d (%s): %w", i+1, cfg.Name, err)
		return res
	}

	if b.Jobs[i].Validate {
		pts, err := exp.Validate(ctx, out.Run.ID)
		if err != nil {
			res.Err = fmt.Errorf("job %d (%s): validate: %w", i+1, cfg.Name, err)
			return res
		}
		res.Validated = len(pts) - 1
	}
	return res
}

// Stats counts completed and failed jobs.
func Stats(results []JobResult) (completed, failed int) {
	for _, r := range results {
		if r.Err == nil {
			completed++
		} else {
			failed++
		}
	}
	return
}
