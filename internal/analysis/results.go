package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/material"
)

var ErrNoSolvedRows = errors.New("analysis: no solved rows")

// Kind labels where a result row came from.
type Kind string

const (
	KindZero         Kind = "zero"
	KindYield        Kind = "yield"
	KindSolved       Kind = "solved"
	KindExtrapolated Kind = "extrapolated"
)

// Result is one row of the final results table. Error columns are only
// meaningful for solved rows (HasError).
type Result struct {
	Kind            Kind    `json:"kind"`
	TotalStrain     float64 `json:"total_strain"`
	PlasticStrain   float64 `json:"plastic_strain"`
	ExpForce        float64 `json:"exp_force"`
	StartStress     float64 `json:"start_stress"`
	EstDisplacement float64 `json:"est_displacement"`
	TrueStress      float64 `json:"true_stress"`
	FEAStrain       float64 `json:"fea_strain"`
	FEAForce        float64 `json:"fea_force"`
	FEADisplacement float64 `json:"fea_displacement"`
	ForceError      float64 `json:"force_error"`
	StrainErrorPct  float64 `json:"strain_error_pct"`
	HasError        bool    `json:"has_error"`
	Converged       bool    `json:"converged"`
	Note            string  `json:"note,omitempty"`
}

// Process turns the calibrated rows into the results table: errors for each
// solved row, one extrapolated row at the peak model strain when it lies
// beyond the last row, and a zero row. Rows that were never solved are left out.
func Process(rows []calib.OutputRow) ([]Result, error) {
	var out []Result
	var solved []calib.OutputRow
	for _, r := range rows {
		res := Result{
			TotalStrain:     r.TotalStrain,
			PlasticStrain:   r.PlasticStrain,
			ExpForce:        r.Force,
			StartStress:     r.StartStress,
			EstDisplacement: r.EstDisplacement,
			TrueStress:      r.TrueStress,
			Converged:       r.Converged,
			Note:            r.Note,
		}
		switch {
		case r.Yield:
			res.Kind = KindYield
		case r.Solved:
			res.Kind = KindSolved
			res.FEAStrain = r.FEAStrain
			res.FEAForce = r.FEAForce
			res.FEADisplacement = r.FEADisplacement
			res.ForceError = r.FEAForce - r.Force
			if r.TotalStrain != 0 {
				res.StrainErrorPct = (r.FEAStrain - r.TotalStrain) / r.TotalStrain * 100
			}
			res.HasError = true
			solved = append(solved, r)
		default:
			continue
		}
		out = append(out, res)
	}
	if len(solved) == 0 {
		return nil, ErrNoSolvedRows
	}

	if ext, ok := extrapolate(out, solved[len(solved)-1].MaxStrain); ok {
		out = append(out, ext)
	}
	out = append(out, Result{Kind: KindZero, Converged: true})

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalStrain < out[j].TotalStrain })
	return out, nil
}

// MeanGradient is the mean slope dy/dx of the last n segments of the polyline
// (fewer when there are not enough points). Segments with no x extent are skipped.
func MeanGradient(x, y []float64, n int) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("analysis: %d x values, %d y values", len(x), len(y))
	}
	var sum float64
	var used int
	for i := len(x) - 1; i >= 1 && used < n; i-- {
		dx := x[i] - x[i-1]
		if dx == 0 {
			continue
		}
		sum += (y[i] - y[i-1]) / dx
		used++
	}
	if used == 0 {
		return 0, fmt.Errorf("analysis: no segment to take a gradient from")
	}
	return sum / float64(used), nil
}

func extrapolate(rows []Result, maxStrain float64) (Result, bool) {
	last := rows[len(rows)-1]
	if len(rows) < 2 || maxStrain <= last.TotalStrain {
		return Result{}, false
	}

	x := make([]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i], y[i] = r.TotalStrain, r.TrueStress
	}
	grad, err := MeanGradient(x, y, 3)
	if err != nil {
		return Result{}, false
	}

	return Result{
		Kind:          KindExtrapolated,
		TotalStrain:   maxStrain,
		PlasticStrain: maxStrain - rows[0].TotalStrain,
		TrueStress:    last.TrueStress + grad*(maxStrain-last.TotalStrain),
		FEAStrain:     maxStrain,
	}, true
}

// Curve is the calibrated hardening curve: every row except the zero row.
func Curve(results []Result, temp float64) []material.Point {
	var pts []material.Point
	for _, r := range results {
		if r.Kind == KindZero {
			continue
		}
		pts = append(pts, material.Point{Temp: temp, Strain: r.PlasticStrain, Stress: r.TrueStress})
	}
	return pts
}

// Solved returns the rows whose errors are meaningful.
func Solved(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.HasError {
			out = append(out, r)
		}
	}
	return out
}

var header = []string{
	"kind", "exp_tot_strain", "exp_plastic_strain", "exp_force", "starting_stress", "est_displacement",
	"true_stress", "fea_strain", "fea_force", "fea_displacement", "force_error", "strain_error_pct",
	"converged", "note",
}

// WriteCSV writes the results table. Error columns are empty where not meaningful.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		fe, se := "", ""
		if r.HasError {
			fe, se = ff(r.ForceError), ff(r.StrainErrorPct)
		}
		rec := []string{
			string(r.Kind), ff(r.TotalStrain), ff(r.PlasticStrain), ff(r.ExpForce), ff(r.StartStress),
			ff(r.EstDisplacement), ff(r.TrueStress), ff(r.FEAStrain), ff(r.FEAForce), ff(r.FEADisplacement),
			fe, se, strconv.FormatBool(r.Converged), r.Note,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(r io.Reader) ([]Result, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]Result, 0, len(records)-1)
	for n, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("analysis: results line %d has %d fields, want %d", n+2, len(rec), len(header))
		}
		var vals [11]float64
		for i := range vals {
			s := rec[i+1]
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("analysis: results line %d column %s: %w", n+2, header[i+1], err)
			}
			vals[i] = v
		}
		conv, err := strconv.ParseBool(rec[12])
		if err != nil {
			return nil, fmt.Errorf("analysis: results line %d column %s: %w", n+2, header[12], err)
		}
		out = append(out, Result{
			Kind:            Kind(rec[0]),
			TotalStrain:     vals[0],
			PlasticStrain:   vals[1],
			ExpForce:        vals[2],
			StartStress:     vals[3],
			EstDisplacement: vals[4],
			TrueStress:      vals[5],
			FEAStrain:       vals[6],
			FEAForce:        vals[7],
			FEADisplacement: vals[8],
			ForceError:      vals[9],
			StrainErrorPct:  vals[10],
			HasError:        rec[10] != "",
			Converged:       conv,
			Note:            rec[13],
		})
	}
	return out, nil
}

func ff(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
