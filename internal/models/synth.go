package models

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/material"
)

var ErrBadTruth = errors.New("models: truth curve needs at least two points with increasing plastic strain")

// TruthFile is a known hardening curve used to synthesize test data.
type TruthFile struct {
	Temperature float64          `yaml:"temperature"`
	Points      []material.Point `yaml:"points"`
}

// DefaultTruth is a four-point curve of a mild steel.
func DefaultTruth() []material.Point {
	return []material.Point{
		{Temp: material.ReferenceTemperature, Strain: 0, Stress: 300e6},
		{Temp: material.ReferenceTemperature, Strain: 0.01, Stress: 400e6},
		{Temp: material.ReferenceTemperature, Strain: 0.03, Stress: 450e6},
		{Temp: material.ReferenceTemperature, Strain: 0.06, Stress: 480e6},
	}
}

// LoadTruth reads a TruthFile. Points without a temperature take the file's.
func LoadTruth(path string) ([]material.Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tf := TruthFile{Temperature: material.ReferenceTemperature}
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("models: %s: %w", path, err)
	}
	if len(tf.Points) < 2 {
		return nil, ErrBadTruth
	}
	for i := range tf.Points {
		if tf.Points[i].Temp == 0 {
			tf.Points[i].Temp = tf.Temperature
		}
		if i > 0 && tf.Points[i].Strain <= tf.Points[i-1].Strain {
			return nil, fmt.Errorf("%w: point %d", ErrBadTruth, i)
		}
	}
	return tf.Points, nil
}

// Synthesize builds an experimental dataset that the specimen reproduces
// exactly when given truth as its hardening curve. Starting stresses for rows
// after the yield row are scaled by guess, and estimated displacements by
// dispGuess, so a calibration has something to correct.
func Synthesize(s *Specimen, truth []material.Point, youngs, guess, dispGuess float64) []dataset.Row {
	rows := make([]dataset.Row, len(truth))
	for i, p := range truth {
		total := p.Stress/youngs + p.Strain
		start := p.Stress
		if i > 0 {
			start = p.Stress * guess
		}
		rows[i] = dataset.Row{
			TotalStrain:     total,
			PlasticStrain:   p.Strain,
			Force:           s.Area * p.Stress,
			StartStress:     start,
			EstDisplacement: s.DisplacementFor(total) * dispGuess,
		}
	}
	return rows
}

// ForceDisplacementCurve samples the specimen at n displacements up to dMax.
func ForceDisplacementCurve(s *Specimen, truth []material.Point, e material.Elastic, dMax float64, n int) []dataset.ForceDisplacement {
	out := make([]dataset.ForceDisplacement, 0, n)
	for i := 1; i <= n; i++ {
		d := dMax * float64(i) / float64(n)
		r := s.Respond(d, truth, e)
		out = append(out, dataset.ForceDisplacement{Force: r.Force, Displacement: d})
	}
	return out
}
