// Package material holds the working hypothesis of the plastic hardening
// curve that is fed to the simulator on every trial, plus the elastic
// constants that accompany it.
package material

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/ifd/internal/numeric"
)

// ReferenceTemperature is the temperature column written with every point, in C.
const ReferenceTemperature = 22.0

// ExtrapolationFactor places the synthetic tail point at this multiple of the
// last real plastic strain.
const ExtrapolationFactor = 1.5

var (
	ErrEmptyCurve    = errors.New("material: curve has no points")
	ErrTrailingCount = errors.New("material: trailing count out of range")
)

// Point is one row of the multilinear isotropic hardening table.
type Point struct {
	Temp   float64 `json:"temp" yaml:"temp"`
	Strain float64 `json:"strain" yaml:"strain"` // plastic strain
	Stress float64 `json:"stress" yaml:"stress"` // true stress, Pa
}

// Elastic holds the isotropic elastic constants.
type Elastic struct {
	Youngs  float64 `json:"youngs"` // Pa
	Poisson float64 `json:"poisson"`
	Temp    float64 `json:"temp"`
}

// Curve is the current hardening hypothesis. Once a trial is placed it always
// ends with one synthetic point extrapolated from the last real segment.
type Curve struct {
	temp   float64
	points []Point
	tail   bool
}

func NewCurve(temp float64) *Curve {
	return &Curve{temp: temp}
}

func (c *Curve) Len() int { return len(c.points) }

// Finalized is the number of real points that are no longer under trial.
func (c *Curve) Finalized() int {
	if c.tail {
		return len(c.points) - 2
	}
	return len(c.points)
}

// Points returns a copy of the points, tail included.
func (c *Curve) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// Seed starts the curve with a single fixed point (the yield point).
func (c *Curve) Seed(strain, stress float64) {
	c.points = []Point{{Temp: c.temp, Strain: strain, Stress: stress}}
	c.tail = false
}

// ReplaceTrailing drops the last count points and appends pts in their place.
// count must satisfy 0 <= count <= Len.
func (c *Curve) ReplaceTrailing(count int, pts ...Point) error {
	if count < 0 || count > len(c.points) {
		return fmt.Errorf("%w: %d of %d", ErrTrailingCount, count, len(c.points))
	}
	c.points = append(c.points[:len(c.points)-count], pts...)
	return nil
}

// BeginRow opens a new trial point after the finalized points: the previous
// row's trial becomes final and the old synthetic tail is discarded.
func (c *Curve) BeginRow(strain, stress float64) error {
	if len(c.points) == 0 {
		return ErrEmptyCurve
	}
	drop := 0
	if c.tail {
		drop = 1
	}
	return c.place(drop, strain, stress)
}

// SetTrial replaces the current trial point and its synthetic tail.
func (c *Curve) SetTrial(strain, stress float64) error {
	if !c.tail {
		return c.BeginRow(strain, stress)
	}
	return c.place(2, strain, stress)
}

func (c *Curve) place(drop int, strain, stress float64) error {
	if len(c.points)-drop < 1 {
		return ErrEmptyCurve
	}
	prev := c.points[len(c.points)-drop-1]
	tailStrain := strain * ExtrapolationFactor
	tailStress, err := numeric.Extrapolate(prev.Strain, strain, prev.Stress, stress, tailStrain)
	if err != nil {
		return fmt.Errorf("material: tail from %g to %g: %w", prev.Strain, strain, err)
	}
	trial := Point{Temp: c.temp, Strain: strain, Stress: stress}
	tail := Point{Temp: c.temp, Strain: tailStrain, Stress: tailStress}
	if err := c.ReplaceTrailing(drop, trial, tail); err != nil {
		return err
	}
	c.tail = true
	return nil
}

// WriteCSV writes the curve as temp,strain,stress with a header row.
func WriteCSV(w io.Writer, pts []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"temp", "strain", "stress"}); err != nil {
		return err
	}
	for _, p := range pts {
		row := []string{
			strconv.FormatFloat(p.Temp, 'g', -1, 64),
			strconv.FormatFloat(p.Strain, 'g', -1, 64),
			strconv.FormatFloat(p.Stress, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteElasticCSV writes youngs,temp,poisson with a header row.
func WriteElasticCSV(w io.Writer, e Elastic) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"youngs", "temp", "poisson"},
		{
			strconv.FormatFloat(e.Youngs, 'g', -1, 64),
			strconv.FormatFloat(e.Temp, 'g', -1, 64),
			strconv.FormatFloat(e.Poisson, 'g', -1, 64),
		},
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
