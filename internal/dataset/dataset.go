// Package dataset reads and writes the experimental input tables.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

var (
	ErrTooFewRows    = errors.New("dataset: need a yield row and at least one more row")
	ErrDuplicateRows = errors.New("dataset: duplicate total strain")
	ErrPlasticOrder  = errors.New("dataset: plastic strain must increase with total strain")
)

// Row is one experimental data point. Row 0 of a dataset is the yield point.
type Row struct {
	TotalStrain     float64 `json:"total_strain"`
	PlasticStrain   float64 `json:"plastic_strain"`
	Force           float64 `json:"force"`
	StartStress     float64 `json:"start_stress"`
	EstDisplacement float64 `json:"est_displacement"`
}

var rowHeader = []string{"", "Exp Tot Strain [-]", "Exp Plastic Strain [-]", "Exp Force [N]",
	"Starting Stress [Pa]", "Est Displacement [m]"}

// Load reads a calibration input CSV: a header line, then rows of
// index, total strain, plastic strain, force, starting stress, estimated displacement.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) ([]Row, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		vals, err := parseCols(rec, 5)
		if err != nil {
			return nil, fmt.Errorf("dataset: line %d: %w", i+2, err)
		}
		rows = append(rows, Row{
			TotalStrain:     vals[0],
			PlasticStrain:   vals[1],
			Force:           vals[2],
			StartStress:     vals[3],
			EstDisplacement: vals[4],
		})
	}

	if len(rows) < 2 {
		return nil, ErrTooFewRows
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalStrain < rows[j].TotalStrain })
	for i := 1; i < len(rows); i++ {
		if rows[i].TotalStrain == rows[i-1].TotalStrain {
			return nil, fmt.Errorf("%w: %g", ErrDuplicateRows, rows[i].TotalStrain)
		}
		if rows[i].PlasticStrain <= rows[i-1].PlasticStrain {
			return nil, fmt.Errorf("%w: %g after %g at total strain %g",
				ErrPlasticOrder, rows[i].PlasticStrain, rows[i-1].PlasticStrain, rows[i].TotalStrain)
		}
	}
	return rows, nil
}

// Write emits rows in the format Read accepts.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rowHeader); err != nil {
		return err
	}
	for i, r := range rows {
		rec := []string{strconv.Itoa(i), ff(r.TotalStrain), ff(r.PlasticStrain), ff(r.Force),
			ff(r.StartStress), ff(r.EstDisplacement)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ForceDisplacement is one point of a measured force-displacement curve.
type ForceDisplacement struct {
	Force        float64 `json:"force"`
	Displacement float64 `json:"displacement"`
}

// LoadForceDisplacement reads index, force, displacement rows after a header line.
func LoadForceDisplacement(path string) ([]ForceDisplacement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := readRecords(f)
	if err != nil {
		return nil, err
	}
	out := make([]ForceDisplacement, 0, len(records))
	for i, rec := range records {
		vals, err := parseCols(rec, 2)
		if err != nil {
			return nil, fmt.Errorf("dataset: line %d: %w", i+2, err)
		}
		out = append(out, ForceDisplacement{Force: vals[0], Displacement: vals[1]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Displacement < out[j].Displacement })
	return out, nil
}

// WriteForceDisplacement emits points in the format LoadForceDisplacement accepts.
func WriteForceDisplacement(w io.Writer, pts []ForceDisplacement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"", "Exp Force [N]", "Exp Displacement [m]"}); err != nil {
		return err
	}
	for i, p := range pts {
		if err := cw.Write([]string{strconv.Itoa(i), ff(p.Force), ff(p.Displacement)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	body := records[1:]
	out := body[:0]
	for _, rec := range body {
		if len(rec) == 0 || (len(rec) == 1 && rec[0] == "") {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseCols parses columns 1..n, skipping the leading index column.
func parseCols(rec []string, n int) ([]float64, error) {
	if len(rec) < n+1 {
		return nil, fmt.Errorf("expected %d columns, got %d", n+1, len(rec))
	}
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
