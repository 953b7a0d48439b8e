package metrics

import (
	"math"

	"github.com/san-kum/ifd/internal/ledger"
)

// Metric accumulates a value over the displacement trials of a run.
type Metric interface {
	Name() string
	Observe(t ledger.Trial)
	Value() float64
	Reset()
}

// StressObserver is implemented by metrics that also look at stress trials.
type StressObserver interface {
	ObserveStress(st ledger.StressTrial)
}

type Invocations struct {
	name  string
	count int
}

func NewInvocations() *Invocations {
	return &Invocations{name: "invocations"}
}

func (m *Invocations) Name() string           { return m.name }
func (m *Invocations) Observe(t ledger.Trial) { m.count++ }
func (m *Invocations) Value() float64         { return float64(m.count) }
func (m *Invocations) Reset()                 { m.count = 0 }

// StrainError is the mean absolute strain error in percent over all trials.
type StrainError struct {
	name    string
	sum     float64
	samples int
}

func NewStrainError() *StrainError {
	return &StrainError{name: "mean_abs_strain_error_pct"}
}

func (m *StrainError) Name() string { return m.name }

func (m *StrainError) Observe(t ledger.Trial) {
	m.sum += math.Abs(t.StrainErrPct)
	m.samples++
}

func (m *StrainError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *StrainError) Reset() {
	m.sum = 0
	m.samples = 0
}

// StressTries counts stress trials and remembers the worst force miss.
type StressTries struct {
	name     string
	tries    int
	maxDelta float64
}

func NewStressTries() *StressTries {
	return &StressTries{name: "stress_tries"}
}

func (m *StressTries) Name() string           { return m.name }
func (m *StressTries) Observe(t ledger.Trial) {}

func (m *StressTries) ObserveStress(st ledger.StressTrial) {
	m.tries++
	if d := math.Abs(st.ForceDelta); d > m.maxDelta {
		m.maxDelta = d
	}
}

func (m *StressTries) Value() float64 { return float64(m.tries) }

// MaxForceDelta is the largest |F_oracle - F_target| seen in any stress trial.
func (m *StressTries) MaxForceDelta() float64 { return m.maxDelta }

func (m *StressTries) Reset() {
	m.tries = 0
	m.maxDelta = 0
}

// Set feeds every metric from the trial ledger. It is a ledger.Sink.
type Set []Metric

func Default() Set {
	return Set{NewInvocations(), NewStrainError(), NewStressTries()}
}

func (s Set) RecordTrial(t ledger.Trial) error {
	for _, m := range s {
		m.Observe(t)
	}
	return nil
}

func (s Set) RecordStress(st ledger.StressTrial) error {
	for _, m := range s {
		if so, ok := m.(StressObserver); ok {
			so.ObserveStress(st)
		}
	}
	return nil
}

func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s)+1)
	for _, m := range s {
		out[m.Name()] = m.Value()
		if st, ok := m.(*StressTries); ok {
			out["max_force_delta"] = st.MaxForceDelta()
		}
	}
	return out
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}
