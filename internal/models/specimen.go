package models

import (
	"errors"

	"github.com/san-kum/ifd/internal/material"
)

var ErrBadSpecimen = errors.New("models: specimen geometry must be positive")

// Specimen is a uniaxial bar under displacement control. The gauge region
// reports strain proportional to the applied displacement, and the force is
// the gauge area times the stress read off the hardening curve at that
// strain. It stands in for a finite-element model when none is available.
type Specimen struct {
	GaugeLength     float64 // m
	Area            float64 // m^2
	StrainFactor    float64 // gauge strain per nominal strain (d / GaugeLength)
	MaxStrainFactor float64 // peak strain in the model relative to the gauge strain
}

func NewSpecimen() *Specimen {
	return &Specimen{
		GaugeLength:     0.05,
		Area:            1e-5,
		StrainFactor:    1.0,
		MaxStrainFactor: 1.25,
	}
}

func (s *Specimen) Validate() error {
	if s.GaugeLength <= 0 || s.Area <= 0 || s.StrainFactor <= 0 {
		return ErrBadSpecimen
	}
	return nil
}

// Response is the mechanical response of the specimen at one displacement.
type Response struct {
	Strain       float64
	Force        float64
	Displacement float64
	MaxStrain    float64
}

// Respond applies displacement d with the given hardening curve.
func (s *Specimen) Respond(d float64, curve []material.Point, e material.Elastic) Response {
	strain := s.StrainFactor * d / s.GaugeLength
	stress := StressAt(strain, curve, e.Youngs)
	mf := s.MaxStrainFactor
	if mf == 0 {
		mf = 1
	}
	return Response{
		Strain:       strain,
		Force:        s.Area * stress,
		Displacement: d,
		MaxStrain:    strain * mf,
	}
}

// DisplacementFor is the displacement that produces the given gauge strain.
func (s *Specimen) DisplacementFor(strain float64) float64 {
	return strain * s.GaugeLength / s.StrainFactor
}

// StressAt evaluates a multilinear isotropic hardening curve at a total strain.
// Each point sits at total strain stress/E + plastic strain. Below the first
// point the response is linear from the origin; past the last point the last
// segment is continued.
func StressAt(total float64, curve []material.Point, youngs float64) float64 {
	if len(curve) == 0 || youngs <= 0 {
		return youngs * total
	}

	at := func(p material.Point) float64 { return p.Stress/youngs + p.Strain }

	e0 := at(curve[0])
	if total <= e0 {
		if e0 <= 0 {
			return curve[0].Stress
		}
		return curve[0].Stress * total / e0
	}

	for i := 0; i+1 < len(curve); i++ {
		ea, eb := at(curve[i]), at(curve[i+1])
		if total >= ea && total <= eb && eb > ea {
			return curve[i].Stress + (curve[i+1].Stress-curve[i].Stress)*(total-ea)/(eb-ea)
		}
	}

	last := curve[len(curve)-1]
	if len(curve) == 1 {
		return last.Stress
	}
	prev := curve[len(curve)-2]
	ea, eb := at(prev), at(last)
	if eb == ea {
		return last.Stress
	}
	return prev.Stress + (last.Stress-prev.Stress)*(total-ea)/(eb-ea)
}
