package config

import "sort"

// Presets trade accuracy for speed through the step size and the strategy
// budgets. Each preset is applied on top of DefaultConfig.
var Presets = map[string]func(*Config){
	"fast": func(c *Config) {
		c.Tracking.StepSize = 5
		c.Reconstruction.Grid.Samples = 15
		c.Reconstruction.Grid.MaxRounds = 4
		c.Reconstruction.Gradient.MaxIteration = 40
		c.Reconstruction.ThreePoint.MaxIteration = 60
		c.Reconstruction.Minimizer.MaxIteration = 50
		c.Reconstruction.Acceptance = 10
	},
	"default": func(*Config) {},
	"precise": func(c *Config) {
		c.Tracking.StepSize = 0.5
		c.Reconstruction.Grid.Samples = 41
		c.Reconstruction.Grid.MaxRounds = 8
		c.Reconstruction.Grid.Tolerance = 1e-3
		c.Reconstruction.Gradient.Tolerance = 1e-4
		c.Reconstruction.Gradient.MaxIteration = 300
		c.Reconstruction.ThreePoint.Tolerance = 1e-4
		c.Reconstruction.ThreePoint.MaxIteration = 500
		c.Reconstruction.Minimizer.Tolerance = 1e-4
		c.Reconstruction.Minimizer.MaxIteration = 300
		c.Reconstruction.Acceptance = 2
	},
}

// GetPreset returns a fresh configuration for the named preset, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
