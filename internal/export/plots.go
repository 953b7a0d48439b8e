package export

import (
	"errors"
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/ifd/internal/analysis"
)

var ErrNoData = errors.New("export: nothing to plot")

// File names of the standard plots.
const (
	StressStrainFile      = "1_TrueStressStrain.png"
	StressStrainStartFile = "2_TrueStressStrain.png"
	ForceErrorFile        = "3_ForceError.png"
	StrainErrorFile       = "4_StrainError.png"
	ForceDisplacementFile = "5_ForceDisplacement.png"
)

const (
	strainLabel = "Equivalent True Strain [-]"
	stressLabel = "Equivalent True Stress [Pa]"
)

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(plotter.NewGrid())
	return p
}

// StressStrain plots the calibrated curve, with the starting curve when withStart is set.
func StressStrain(results []analysis.Result, withStart bool) (*plot.Plot, error) {
	if len(results) == 0 {
		return nil, ErrNoData
	}
	calibrated := make(plotter.XYs, 0, len(results))
	start := make(plotter.XYs, 0, len(results))
	for _, r := range results {
		calibrated = append(calibrated, plotter.XY{X: r.TotalStrain, Y: r.TrueStress})
		if r.Kind != analysis.KindExtrapolated {
			start = append(start, plotter.XY{X: r.TotalStrain, Y: r.StartStress})
		}
	}

	p := newPlot("True stress-strain", strainLabel, stressLabel)
	var err error
	if withStart {
		err = plotutil.AddLinePoints(p, "Starting curve", start, "IFD curve", calibrated)
	} else {
		err = plotutil.AddLinePoints(p, "IFD curve", calibrated)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ForceError plots FEA minus experimental force for every solved row.
func ForceError(results []analysis.Result) (*plot.Plot, error) {
	return errorPlot(results, "Force error", "Force Error [N]", func(r analysis.Result) float64 { return r.ForceError })
}

// StrainError plots the strain error in percent for every solved row.
func StrainError(results []analysis.Result) (*plot.Plot, error) {
	return errorPlot(results, "Strain error", "Strain Error %", func(r analysis.Result) float64 { return r.StrainErrorPct })
}

func errorPlot(results []analysis.Result, title, label string, val func(analysis.Result) float64) (*plot.Plot, error) {
	solved := analysis.Solved(results)
	if len(solved) == 0 {
		return nil, ErrNoData
	}
	pts := make(plotter.XYs, len(solved))
	for i, r := range solved {
		pts[i] = plotter.XY{X: r.TotalStrain, Y: val(r)}
	}

	p := newPlot(title, strainLabel, label)
	if err := plotutil.AddLinePoints(p, pts); err != nil {
		return nil, err
	}
	return p, nil
}

// ForceDisplacement compares experimental and simulated force-displacement curves.
func ForceDisplacement(pts []analysis.ValidationPoint) (*plot.Plot, error) {
	if len(pts) == 0 {
		return nil, ErrNoData
	}
	exp := make(plotter.XYs, len(pts))
	fea := make(plotter.XYs, len(pts))
	for i, v := range pts {
		exp[i] = plotter.XY{X: v.Displacement, Y: v.ExpForce}
		fea[i] = plotter.XY{X: v.Displacement, Y: v.FEAForce}
	}

	p := newPlot("Force-displacement validation", "Displacement [m]", "Force [N]")
	if err := plotutil.AddLinePoints(p, "Experiment", exp, "FEM", fea); err != nil {
		return nil, err
	}
	return p, nil
}

// Save writes p at 6x4 inches; the format follows the file extension.
func Save(p *plot.Plot, path string) error {
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("export: %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Results writes the four result plots into dir and returns their paths.
func Results(dir string, results []analysis.Result) ([]string, error) {
	type job struct {
		file string
		make func() (*plot.Plot, error)
	}
	jobs := []job{
		{StressStrainFile, func() (*plot.Plot, error) { return StressStrain(results, false) }},
		{StressStrainStartFile, func() (*plot.Plot, error) { return StressStrain(results, true) }},
		{ForceErrorFile, func() (*plot.Plot, error) { return ForceError(results) }},
		{StrainErrorFile, func() (*plot.Plot, error) { return StrainError(results) }},
	}

	var paths []string
	for _, j := range jobs {
		p, err := j.make()
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, j.file)
		if err := Save(p, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
