package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var (
	trialHeader = []string{"row", "stress_try", "disp_try", "iteration", "try_stress", "trial_disp",
		"fea_force", "fea_disp", "fea_strain", "max_strain", "strain_err_pct"}
	stressHeader = []string{"row", "stress_try", "iteration", "try_stress", "fea_force", "fea_strain",
		"fea_disp", "max_strain", "strain_err_pct", "force_delta", "strain_met"}
)

// CSVSink appends records to per-row and per-stress-attempt CSV files under dir:
// row{i}.csv holds the stress attempts of row i, row{i}_stress{j}.csv the
// displacement attempts of stress attempt j.
type CSVSink struct {
	dir string
}

func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &CSVSink{dir: dir}, nil
}

func (s *CSVSink) RecordTrial(t Trial) error {
	path := filepath.Join(s.dir, fmt.Sprintf("row%d_stress%d.csv", t.Row, t.StressTry))
	return appendRow(path, trialHeader, []string{
		strconv.Itoa(t.Row),
		strconv.Itoa(t.StressTry),
		strconv.Itoa(t.DispTry),
		strconv.Itoa(t.Iteration),
		ff(t.Stress),
		ff(t.TrialDisp),
		ff(t.Force),
		ff(t.Displacement),
		ff(t.Strain),
		ff(t.MaxStrain),
		ff(t.StrainErrPct),
	})
}

func (s *CSVSink) RecordStress(st StressTrial) error {
	path := filepath.Join(s.dir, fmt.Sprintf("row%d.csv", st.Row))
	return appendRow(path, stressHeader, []string{
		strconv.Itoa(st.Row),
		strconv.Itoa(st.StressTry),
		strconv.Itoa(st.Iteration),
		ff(st.Stress),
		ff(st.Force),
		ff(st.Strain),
		ff(st.Displacement),
		ff(st.MaxStrain),
		ff(st.StrainErrPct),
		ff(st.ForceDelta),
		strconv.FormatBool(st.StrainMet),
	})
}

func appendRow(path string, header, row []string) error {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
