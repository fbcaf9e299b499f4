package config

import "sort"

// Presets are named landing scenarios. GetPreset returns copies.
var Presets = map[string]*Config{
	"nominal": DefaultConfig(),
	"offset": func() *Config {
		c := DefaultConfig()
		c.InitState = InitStateConfig{X: 12, Y: -8, Z: 30, VX: 1, VY: 1, VZ: -4}
		return c
	}(),
	"steep": func() *Config {
		c := DefaultConfig()
		c.InitState = InitStateConfig{X: 2, Y: 1, Z: 40, VX: 0, VY: 0, VZ: -10}
		c.Constraints.MaxAngle = 15
		c.Constraints.GlideSlope = 30
		return c
	}(),
	"noisy": func() *Config {
		c := DefaultConfig()
		c.MPC.Noise = NoiseConfig{Position: 0.01, Velocity: 0.001}
		c.Seed = 42
		return c
	}(),
}

func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
