// Package ledger records every simulator trial of a calibration run.
//
// Records are append-only. The searches read them back only to choose the
// next guess; they never feed the material curve. A Sink persists each record
// as it is appended, for review after the run.
package ledger

import "github.com/san-kum/ifd/internal/numeric"

// Trial is one displacement attempt inside one stress attempt.
type Trial struct {
	Row          int     `json:"row"`
	StressTry    int     `json:"stress_try"`
	DispTry      int     `json:"disp_try"`
	Iteration    int     `json:"iteration"`
	Stress       float64 `json:"stress"`
	TrialDisp    float64 `json:"trial_disp"`
	Force        float64 `json:"force"`
	Strain       float64 `json:"strain"`
	Displacement float64 `json:"displacement"`
	MaxStrain    float64 `json:"max_strain"`
	StrainErrPct float64 `json:"strain_err_pct"`
}

// StressTrial summarises one stress attempt once its displacement search ends.
type StressTrial struct {
	Row          int     `json:"row"`
	StressTry    int     `json:"stress_try"`
	Iteration    int     `json:"iteration"`
	Stress       float64 `json:"stress"`
	Force        float64 `json:"force"`
	Strain       float64 `json:"strain"`
	Displacement float64 `json:"displacement"`
	MaxStrain    float64 `json:"max_strain"`
	StrainErrPct float64 `json:"strain_err_pct"`
	ForceDelta   float64 `json:"force_delta"`
	StrainMet    bool    `json:"strain_met"`
}

// StrainErrorPct is the signed strain error relative to target, in percent.
func StrainErrorPct(strain, target float64) float64 {
	if target == 0 {
		return 0
	}
	return (strain - target) / target * 100
}

// Trials is the displacement ledger of one stress attempt.
type Trials []Trial

func (t Trials) Append(tr Trial) Trials { return append(t, tr) }

// StrainObs maps each trial to (strain, reported displacement).
func (t Trials) StrainObs() []numeric.Obs {
	obs := make([]numeric.Obs, len(t))
	for i, tr := range t {
		obs[i] = numeric.Obs{X: tr.Strain, Y: tr.Displacement}
	}
	return obs
}

// StressTrials is the stress ledger of one row.
type StressTrials []StressTrial

func (s StressTrials) Append(st StressTrial) StressTrials { return append(s, st) }

// ForceObs maps each stress attempt to (force, stress).
func (s StressTrials) ForceObs() []numeric.Obs {
	obs := make([]numeric.Obs, len(s))
	for i, st := range s {
		obs[i] = numeric.Obs{X: st.Force, Y: st.Stress}
	}
	return obs
}

// Tried reports the most recent attempt made at exactly stress.
func (s StressTrials) Tried(stress float64) (StressTrial, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Stress == stress {
			return s[i], true
		}
	}
	return StressTrial{}, false
}

// Sink persists ledger records as they are produced.
type Sink interface {
	RecordTrial(Trial) error
	RecordStress(StressTrial) error
}

type discard struct{}

func (discard) RecordTrial(Trial) error        { return nil }
func (discard) RecordStress(StressTrial) error { return nil }

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

// Memory keeps every record in memory. Useful for tests and summaries.
type Memory struct {
	Trials   []Trial
	Stresses []StressTrial
}

func (m *Memory) RecordTrial(t Trial) error {
	m.Trials = append(m.Trials, t)
	return nil
}

func (m *Memory) RecordStress(s StressTrial) error {
	m.Stresses = append(m.Stresses, s)
	return nil
}

// Multi fans records out to several sinks, stopping at the first error.
type Multi []Sink

func (m Multi) RecordTrial(t Trial) error {
	for _, s := range m {
		if err := s.RecordTrial(t); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) RecordStress(st StressTrial) error {
	for _, s := range m {
		if err := s.RecordStress(st); err != nil {
			return err
		}
	}
	return nil
}
