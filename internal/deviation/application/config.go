package application

import (
	"os"

	"gopkg.in/yaml.v3"

	calibration "gagetrack/internal/calibration/domain"
)

// Config defines deviation trigger thresholds with per-gage overrides.
type Config struct {
	Defaults calibration.DeviationPolicy            `yaml:"defaults"`
	Gages    map[string]calibration.DeviationPolicy `yaml:"gages"`
}

// LoadConfig loads thresholds from the yaml file named by DEVIATION_CONFIG,
// falling back to historical defaults when unset.
func LoadConfig() (Config, error) {
	cfg := Config{Defaults: calibration.DefaultDeviationPolicy()}

	if path := os.Getenv("DEVIATION_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if cfg.Defaults == (calibration.DeviationPolicy{}) {
		cfg.Defaults = calibration.DefaultDeviationPolicy()
	}
	return cfg, nil
}

// PolicyFor returns the policy for a gage, merging overrides over defaults.
func (c Config) PolicyFor(gageID string) calibration.DeviationPolicy {
	if c.Gages != nil {
		if override, ok := c.Gages[gageID]; ok {
			return mergePolicy(c.Defaults, override)
		}
	}
	return c.Defaults
}

func mergePolicy(base, override calibration.DeviationPolicy) calibration.DeviationPolicy {
	if override.AbsoluteThreshold != 0 {
		base.AbsoluteThreshold = override.AbsoluteThreshold
	}
	if override.PercentThreshold != 0 {
		base.PercentThreshold = override.PercentThreshold
	}
	if override.SmallValueCutoff != 0 {
		base.SmallValueCutoff = override.SmallValueCutoff
	}
	return base
}
