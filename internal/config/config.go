package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/material"
	"github.com/san-kum/ifd/internal/numeric"
	"github.com/san-kum/ifd/internal/oracle"
)

const (
	DefaultModulusGPa        = 200.0
	DefaultPoisson           = 0.3
	DefaultArea              = 1e-5
	DefaultForceTolStress    = 0.5e6
	DefaultStrainTolerance   = 0.0025
	DefaultGrowth            = 1.2
	DefaultMaxDispAttempts   = 19
	DefaultMaxStressAttempts = 30
	DefaultDataDir           = "./data"
)

type Config struct {
	Name       string          `yaml:"name"`
	Input      string          `yaml:"input"`      // experimental CSV
	Validation string          `yaml:"validation"` // experimental force-displacement CSV
	DataDir    string          `yaml:"data_dir"`
	Material   MaterialConfig  `yaml:"material"`
	Tolerance  ToleranceConfig `yaml:"tolerance"`
	Oracle     OracleConfig    `yaml:"oracle"`
}

type MaterialConfig struct {
	Preset      string  `yaml:"preset,omitempty"`
	ModulusGPa  float64 `yaml:"modulus_gpa"`
	Poisson     float64 `yaml:"poisson"`
	Temperature float64 `yaml:"temperature"`
}

type ToleranceConfig struct {
	Area               float64 `yaml:"area"`         // m^2, excluding symmetries
	ForceStress        float64 `yaml:"force_stress"` // Pa
	Strain             float64 `yaml:"strain"`       // relative
	DisplacementGrowth float64 `yaml:"displacement_growth"`
	MaxDispAttempts    int     `yaml:"max_displacement_attempts"`
	MaxStressAttempts  int     `yaml:"max_stress_attempts"`
}

type OracleConfig struct {
	oracle.Spec   `yaml:",inline"`
	Timeout       time.Duration `yaml:"timeout"`
	MinTimeout    time.Duration `yaml:"min_timeout"`
	TimeoutFactor float64       `yaml:"timeout_factor"`
	MaxTries      int           `yaml:"max_tries"`
	SettleDelay   time.Duration `yaml:"settle_delay"`
}

func DefaultConfig() *Config {
	rc := oracle.DefaultRunnerConfig()
	return &Config{
		Name:    "ifd",
		DataDir: DefaultDataDir,
		Material: MaterialConfig{
			ModulusGPa:  DefaultModulusGPa,
			Poisson:     DefaultPoisson,
			Temperature: material.ReferenceTemperature,
		},
		Tolerance: ToleranceConfig{
			Area:               DefaultArea,
			ForceStress:        DefaultForceTolStress,
			Strain:             DefaultStrainTolerance,
			DisplacementGrowth: DefaultGrowth,
			MaxDispAttempts:    DefaultMaxDispAttempts,
			MaxStressAttempts:  DefaultMaxStressAttempts,
		},
		Oracle: OracleConfig{
			Spec: oracle.Spec{
				Kind:     "analytic",
				Analytic: oracle.DefaultAnalyticConfig(),
				Command:  oracle.DefaultCommandConfig(),
			},
			Timeout:       rc.InitialTimeout,
			MinTimeout:    rc.MinTimeout,
			TimeoutFactor: rc.TimeoutFactor,
			MaxTries:      rc.MaxTries,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if cfg.Material.Preset != "" {
		if err := cfg.ApplyPreset(cfg.Material.Preset); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Elastic returns the elastic constants as written to the simulator: the
// modulus rounded to 0.1 Pa and Poisson's ratio to two decimals.
func (c *Config) Elastic() material.Elastic {
	return material.Elastic{
		Youngs:  numeric.Round(c.Material.ModulusGPa*1e9, 1),
		Poisson: numeric.Round(c.Material.Poisson, 2),
		Temp:    c.Material.Temperature,
	}
}

func (c *Config) Calib() calib.Config {
	return calib.Config{
		Area:               c.Tolerance.Area,
		ForceTolStress:     c.Tolerance.ForceStress,
		StrainTolerance:    c.Tolerance.Strain,
		DisplacementGrowth: c.Tolerance.DisplacementGrowth,
		MaxDispAttempts:    c.Tolerance.MaxDispAttempts,
		MaxStressAttempts:  c.Tolerance.MaxStressAttempts,
		Elastic:            c.Elastic(),
	}
}

func (c *Config) Runner() oracle.RunnerConfig {
	return oracle.RunnerConfig{
		InitialTimeout: c.Oracle.Timeout,
		MinTimeout:     c.Oracle.MinTimeout,
		TimeoutFactor:  c.Oracle.TimeoutFactor,
		MaxTries:       c.Oracle.MaxTries,
		SettleDelay:    c.Oracle.SettleDelay,
	}
}

// ApplyPreset replaces the elastic constants with a named preset.
func (c *Config) ApplyPreset(name string) error {
	p := GetPreset(name)
	if p == nil {
		return fmt.Errorf("config: unknown material preset %q (available: %v)", name, ListPresets())
	}
	c.Material.Preset = name
	c.Material.ModulusGPa = p.ModulusGPa
	c.Material.Poisson = p.Poisson
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Material.Poisson <= 0 || c.Material.Poisson >= 0.5 {
		errs = append(errs, fmt.Errorf("poisson must be in (0, 0.5), got %g", c.Material.Poisson))
	}
	if c.Oracle.Kind == "" {
		errs = append(errs, errors.New("oracle.kind is required"))
	}
	if c.Oracle.Kind == "command" && c.Oracle.Command.Command == "" {
		errs = append(errs, errors.New("oracle.command.command is required for the command oracle"))
	}
	if c.Oracle.MaxTries < 1 {
		errs = append(errs, fmt.Errorf("oracle.max_tries must be at least 1, got %d", c.Oracle.MaxTries))
	}
	if c.Oracle.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("oracle.timeout must be positive, got %v", c.Oracle.Timeout))
	}
	if err := c.Calib().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
