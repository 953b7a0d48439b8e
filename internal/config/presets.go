package config

import "sort"

// MaterialPreset is a set of room-temperature elastic constants.
type MaterialPreset struct {
	Description string  `yaml:"description"`
	ModulusGPa  float64 `yaml:"modulus_gpa"`
	Poisson     float64 `yaml:"poisson"`
}

var Presets = map[string]MaterialPreset{
	"p91": {
		Description: "9Cr-1Mo-V creep resistant steel (ASTM A335 P91)",
		ModulusGPa:  218, Poisson: 0.3,
	},
	"s355": {
		Description: "structural carbon steel (EN 10025 S355)",
		ModulusGPa:  210, Poisson: 0.3,
	},
	"al6061": {
		Description: "aluminium alloy 6061-T6",
		ModulusGPa:  68.9, Poisson: 0.33,
	},
	"ti64": {
		Description: "titanium alloy Ti-6Al-4V",
		ModulusGPa:  113.8, Poisson: 0.34,
	},
}

func GetPreset(name string) *MaterialPreset {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return &p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
