package calib

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/material"
)

// OutputRow is the working result for one experimental row.
type OutputRow struct {
	dataset.Row
	TrueStress      float64 `json:"true_stress"`
	FEAStrain       float64 `json:"fea_strain"`
	FEAForce        float64 `json:"fea_force"`
	FEADisplacement float64 `json:"fea_displacement"`
	MaxStrain       float64 `json:"max_strain"`
	Yield           bool    `json:"yield"`
	Solved          bool    `json:"solved"`
	Converged       bool    `json:"converged"`
	StrainMet       bool    `json:"strain_met"`
	StressTries     int     `json:"stress_tries"`
	Invocations     int     `json:"invocations"`
	Note            string  `json:"note,omitempty"`
}

// Config holds the tolerances and limits of a calibration run.
type Config struct {
	Area               float64 // m^2, excluding symmetries
	ForceTolStress     float64 // Pa; force tolerance = Area * ForceTolStress
	StrainTolerance    float64 // relative, e.g. 0.0025 for 0.25 %
	DisplacementGrowth float64 // scale applied after a single observation
	MaxDispAttempts    int     // oracle calls per displacement search
	MaxStressAttempts  int     // stress trials per row
	Elastic            material.Elastic
}

func DefaultConfig() Config {
	return Config{
		Area:               1e-5,
		ForceTolStress:     0.5e6,
		StrainTolerance:    0.0025,
		DisplacementGrowth: 1.2,
		MaxDispAttempts:    19,
		MaxStressAttempts:  30,
		Elastic: material.Elastic{
			Youngs:  200e9,
			Poisson: 0.3,
			Temp:    material.ReferenceTemperature,
		},
	}
}

// ForceTolerance is the absolute force tolerance in N.
func (c Config) ForceTolerance() float64 {
	return c.Area * c.ForceTolStress
}

func (c Config) Validate() error {
	var errs []error
	if c.Area <= 0 {
		errs = append(errs, fmt.Errorf("area must be positive, got %g", c.Area))
	}
	if c.ForceTolStress <= 0 {
		errs = append(errs, fmt.Errorf("force tolerance stress must be positive, got %g", c.ForceTolStress))
	}
	if c.StrainTolerance <= 0 || c.StrainTolerance >= 1 {
		errs = append(errs, fmt.Errorf("strain tolerance must be in (0, 1), got %g", c.StrainTolerance))
	}
	if c.DisplacementGrowth <= 0 || c.DisplacementGrowth == 1 {
		errs = append(errs, fmt.Errorf("displacement growth must be positive and not 1, got %g", c.DisplacementGrowth))
	}
	if c.MaxDispAttempts < 1 {
		errs = append(errs, fmt.Errorf("max displacement attempts must be at least 1, got %d", c.MaxDispAttempts))
	}
	if c.MaxStressAttempts < 1 {
		errs = append(errs, fmt.Errorf("max stress attempts must be at least 1, got %d", c.MaxStressAttempts))
	}
	if c.Elastic.Youngs <= 0 {
		errs = append(errs, fmt.Errorf("elastic modulus must be positive, got %g", c.Elastic.Youngs))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("calib: invalid config: %w", err)
	}
	return nil
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	Rows        int           `json:"rows"`
	Solved      int           `json:"solved"`
	Converged   int           `json:"converged"`
	Failed      []int         `json:"failed,omitempty"` // rows finalized without meeting tolerance
	Invocations int           `json:"invocations"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Logger is the logging collaborator. Console lines are shown to the operator.
type Logger interface {
	Diagnostic(msg string, args ...any)
	Console(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Observer is told about row progress. Trial-level progress goes through a ledger.Sink.
type Observer interface {
	RowStarted(row, last int, targetStrain, targetForce float64)
	RowFinished(r OutputRow)
}

type nopLogger struct{}

func (nopLogger) Diagnostic(string, ...any) {}
func (nopLogger) Console(string, ...any)    {}
func (nopLogger) Warn(string, ...any)       {}

type nopObserver struct{}

func (nopObserver) RowStarted(int, int, float64, float64) {}
func (nopObserver) RowFinished(OutputRow)                 {}
