package oracle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type resettable struct {
	Simulator
	resets int
}

func (r *resettable) Reset(ctx context.Context) error {
	r.resets++
	return nil
}

func fastConfig() RunnerConfig {
	return RunnerConfig{
		InitialTimeout: 50 * time.Millisecond,
		MinTimeout:     20 * time.Millisecond,
		TimeoutFactor:  3,
		MaxTries:       4,
	}
}

func TestRunnerSuccessAdaptsTimeout(t *testing.T) {
	sim := SimulatorFunc(func(ctx context.Context, req Request) Outcome {
		return Success(Response{Strain: req.Displacement * 2}, 10*time.Millisecond)
	})
	r := NewRunner(sim, fastConfig(), nil)

	resp, err := r.Evaluate(context.Background(), Request{Displacement: 0.5})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Strain != 1 {
		t.Errorf("strain = %g, want 1", resp.Strain)
	}
	if r.Calls() != 1 {
		t.Errorf("calls = %d, want 1", r.Calls())
	}
	if r.Timeout() != 30*time.Millisecond {
		t.Errorf("timeout = %v, want 3x elapsed", r.Timeout())
	}
}

func TestRunnerTimeoutFloor(t *testing.T) {
	sim := SimulatorFunc(func(ctx context.Context, req Request) Outcome {
		return Success(Response{}, time.Millisecond)
	})
	r := NewRunner(sim, fastConfig(), nil)
	if _, err := r.Evaluate(context.Background(), Request{}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if r.Timeout() != 20*time.Millisecond {
		t.Errorf("timeout = %v, want the 20ms floor", r.Timeout())
	}
}

func TestRunnerRetriesAfterTimeout(t *testing.T) {
	var n atomic.Int32
	sim := &resettable{Simulator: SimulatorFunc(func(ctx context.Context, req Request) Outcome {
		if n.Add(1) <= 2 {
			<-ctx.Done()
			return Failed(ctx.Err(), 0)
		}
		return Success(Response{Force: 42}, 0)
	})}
	r := NewRunner(sim, fastConfig(), nil)

	resp, err := r.Evaluate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Force != 42 {
		t.Errorf("force = %g, want 42", resp.Force)
	}
	if sim.resets != 2 {
		t.Errorf("resets = %d, want 2", sim.resets)
	}
	if r.Retries() != 2 || r.Calls() != 1 {
		t.Errorf("retries=%d calls=%d", r.Retries(), r.Calls())
	}
}

func TestRunnerRepeatedFailure(t *testing.T) {
	var n atomic.Int32
	boom := errors.New("license server unavailable")
	sim := &resettable{Simulator: SimulatorFunc(func(ctx context.Context, req Request) Outcome {
		n.Add(1)
		return Failed(boom, 0)
	})}
	r := NewRunner(sim, fastConfig(), nil)

	_, err := r.Evaluate(context.Background(), Request{})
	if !errors.Is(err, ErrRepeatedFailure) {
		t.Fatalf("expected ErrRepeatedFailure, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("last cause should be wrapped: %v", err)
	}
	if n.Load() != 4 {
		t.Errorf("attempts = %d, want 4", n.Load())
	}
	if sim.resets != 3 {
		t.Errorf("resets = %d, want 3 (none after the last try)", sim.resets)
	}
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sim := SimulatorFunc(func(ctx context.Context, req Request) Outcome {
		cancel()
		<-ctx.Done()
		return Failed(ctx.Err(), 0)
	})
	r := NewRunner(sim, fastConfig(), nil)

	if _, err := r.Evaluate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if r.Retries() != 0 {
		t.Errorf("an operator abort is not a retry, got %d", r.Retries())
	}
}

func TestRunnerSettleDelayHonoursCancel(t *testing.T) {
	cfg := fastConfig()
	cfg.SettleDelay = time.Hour
	r := NewRunner(SimulatorFunc(func(ctx context.Context, req Request) Outcome {
		t.Error("simulator must not run")
		return Outcome{}
	}), cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := r.Evaluate(ctx, Request{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{StatusSuccess: "success", StatusTimedOut: "timed_out", StatusFailed: "failed"}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
