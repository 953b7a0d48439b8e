package oracle

import (
	"fmt"
	"sort"

	"github.com/san-kum/ifd/internal/models"
)

// AnalyticConfig sizes the closed-form specimen.
type AnalyticConfig struct {
	GaugeLength     float64 `yaml:"gauge_length"`
	Area            float64 `yaml:"area"`
	StrainFactor    float64 `yaml:"strain_factor"`
	MaxStrainFactor float64 `yaml:"max_strain_factor"`
}

func DefaultAnalyticConfig() AnalyticConfig {
	s := models.NewSpecimen()
	return AnalyticConfig{
		GaugeLength:     s.GaugeLength,
		Area:            s.Area,
		StrainFactor:    s.StrainFactor,
		MaxStrainFactor: s.MaxStrainFactor,
	}
}

func (a AnalyticConfig) Specimen() *models.Specimen {
	return &models.Specimen{
		GaugeLength:     a.GaugeLength,
		Area:            a.Area,
		StrainFactor:    a.StrainFactor,
		MaxStrainFactor: a.MaxStrainFactor,
	}
}

// Spec selects and configures a simulator.
type Spec struct {
	Kind     string         `yaml:"kind"`
	Analytic AnalyticConfig `yaml:"analytic"`
	Command  CommandConfig  `yaml:"command"`
}

// Factory builds a simulator whose scratch files live in workDir.
type Factory func(spec Spec, workDir string) (Simulator, error)

type Registry struct {
	kinds map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[string]Factory)}

	r.kinds["analytic"] = func(spec Spec, _ string) (Simulator, error) {
		s := spec.Analytic.Specimen()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return NewAnalytic(s), nil
	}
	r.kinds["command"] = func(spec Spec, workDir string) (Simulator, error) {
		return NewCommand(spec.Command, workDir)
	}

	return r
}

func (r *Registry) Register(kind string, f Factory) {
	r.kinds[kind] = f
}

func (r *Registry) Get(spec Spec, workDir string) (Simulator, error) {
	fn, ok := r.kinds[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownKind, spec.Kind, r.Kinds())
	}
	return fn(spec, workDir)
}

func (r *Registry) Kinds() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
