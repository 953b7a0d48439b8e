package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RunnerConfig bounds and paces simulator attempts.
type RunnerConfig struct {
	InitialTimeout time.Duration // timeout of the first attempt
	MinTimeout     time.Duration // floor of the adaptive timeout
	TimeoutFactor  float64       // next timeout = factor x last successful duration
	MaxTries       int           // attempts per evaluation before giving up
	SettleDelay    time.Duration // pause before each attempt
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		InitialTimeout: 10 * time.Minute,
		MinTimeout:     30 * time.Second,
		TimeoutFactor:  3,
		MaxTries:       4,
	}
}

// Runner is an Oracle built from a Simulator.
type Runner struct {
	sim     Simulator
	cfg     RunnerConfig
	log     Logger
	mu      sync.Mutex
	timeout time.Duration
	calls   int
	retries int
}

func NewRunner(sim Simulator, cfg RunnerConfig, log Logger) *Runner {
	if cfg.MaxTries < 1 {
		cfg.MaxTries = 1
	}
	if cfg.TimeoutFactor <= 0 {
		cfg.TimeoutFactor = 3
	}
	if cfg.InitialTimeout <= 0 {
		cfg.InitialTimeout = DefaultRunnerConfig().InitialTimeout
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Runner{sim: sim, cfg: cfg, log: log, timeout: cfg.InitialTimeout}
}

type nopLogger struct{}

func (nopLogger) Diagnostic(string, ...any) {}
func (nopLogger) Console(string, ...any)    {}
func (nopLogger) Warn(string, ...any)       {}

// Calls is the number of successful evaluations so far.
func (r *Runner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Retries is the number of attempts that timed out or failed.
func (r *Runner) Retries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries
}

// Timeout is the timeout the next attempt will get.
func (r *Runner) Timeout() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeout
}

// Evaluate runs attempts until one succeeds, the context is cancelled, or
// MaxTries attempts have timed out or failed.
func (r *Runner) Evaluate(ctx context.Context, req Request) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last Outcome
	for try := 1; try <= r.cfg.MaxTries; try++ {
		if err := sleep(ctx, r.cfg.SettleDelay); err != nil {
			return Response{}, err
		}

		last = r.attempt(ctx, req)
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		if last.Status == StatusSuccess {
			r.calls++
			r.adapt(last.Elapsed)
			r.log.Diagnostic("simulator run successful", "elapsed", last.Elapsed, "next_timeout", r.timeout)
			return last.Response, nil
		}

		r.retries++
		r.log.Warn("simulator attempt "+last.Status.String(),
			"try", try, "of", r.cfg.MaxTries, "elapsed", last.Elapsed, "err", last.Err)
		if try == r.cfg.MaxTries {
			break
		}

		if rs, ok := r.sim.(Resetter); ok {
			if err := rs.Reset(ctx); err != nil {
				return Response{}, fmt.Errorf("oracle: reset after %s attempt: %w", last.Status, err)
			}
			r.log.Diagnostic("simulator resources reset from template")
		}
	}

	return Response{}, fmt.Errorf("%w after %d tries: %w", ErrRepeatedFailure, r.cfg.MaxTries, last.Err)
}

func (r *Runner) attempt(ctx context.Context, req Request) Outcome {
	actx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out := r.sim.Run(actx, req)
	if out.Elapsed == 0 {
		out.Elapsed = time.Since(start)
	}

	if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) && out.Status != StatusSuccess {
		out.Status = StatusTimedOut
		if out.Err == nil {
			out.Err = ErrTimeout
		}
	}
	return out
}

func (r *Runner) adapt(elapsed time.Duration) {
	next := time.Duration(float64(elapsed) * r.cfg.TimeoutFactor)
	if next < r.cfg.MinTimeout {
		next = r.cfg.MinTimeout
	}
	r.timeout = next
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
