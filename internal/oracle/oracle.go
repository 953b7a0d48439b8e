// Package oracle wraps the external simulator that the calibration treats as
// a black box: given a trial displacement and a hardening curve it reports
// the strain, force and displacement of the model.
//
// A Simulator performs exactly one attempt and reports a tagged Outcome. The
// Runner turns attempts into an Oracle: it bounds every attempt with an
// adaptive timeout, resets the simulator's external resources after a timed
// out or failed attempt, and gives up after a fixed number of tries.
//
// # Thread Safety
//
// A Runner allows one attempt in flight at a time; concurrent Evaluate calls
// are serialised.
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/san-kum/ifd/internal/material"
)

var (
	// ErrTimeout marks an attempt that exceeded its timeout.
	ErrTimeout = errors.New("oracle: attempt timed out")

	// ErrRepeatedFailure is returned once every try has timed out or failed.
	ErrRepeatedFailure = errors.New("oracle: retry limit exhausted")

	// ErrUnknownKind indicates no simulator is registered under a name.
	ErrUnknownKind = errors.New("oracle: unknown simulator kind")
)

// Request is the input of one simulator evaluation.
type Request struct {
	Displacement float64
	Curve        []material.Point
	Elastic      material.Elastic
}

// Response is what the simulator reports for one evaluation.
type Response struct {
	Strain       float64 `json:"strain"`
	Force        float64 `json:"force"`
	Displacement float64 `json:"displacement"`
	MaxStrain    float64 `json:"max_strain"`
}

// Status tags an Outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusTimedOut
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "failed"
	}
}

// Outcome is the result of a single attempt.
type Outcome struct {
	Status   Status
	Response Response
	Elapsed  time.Duration
	Err      error
}

func Success(r Response, elapsed time.Duration) Outcome {
	return Outcome{Status: StatusSuccess, Response: r, Elapsed: elapsed}
}

func Failed(err error, elapsed time.Duration) Outcome {
	return Outcome{Status: StatusFailed, Err: err, Elapsed: elapsed}
}

func TimedOut(elapsed time.Duration) Outcome {
	return Outcome{Status: StatusTimedOut, Err: ErrTimeout, Elapsed: elapsed}
}

// Simulator performs one evaluation attempt. It must return promptly once ctx is done.
type Simulator interface {
	Run(ctx context.Context, req Request) Outcome
}

// Resetter is implemented by simulators holding external resources that a
// killed attempt can leave locked. Reset discards them and recreates them
// from a clean template.
type Resetter interface {
	Reset(ctx context.Context) error
}

// SimulatorFunc adapts a function to Simulator.
type SimulatorFunc func(ctx context.Context, req Request) Outcome

func (f SimulatorFunc) Run(ctx context.Context, req Request) Outcome { return f(ctx, req) }

// Oracle is what the calibration searches consume.
type Oracle interface {
	Evaluate(ctx context.Context, req Request) (Response, error)
}

// Logger is the subset of the run logger used here.
type Logger interface {
	Diagnostic(msg string, args ...any)
	Console(msg string, args ...any)
	Warn(msg string, args ...any)
}
