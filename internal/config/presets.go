package config

import (
	"math"
	"sort"

	"github.com/san-kum/swerve/internal/automation"
)

var Presets = map[string]*Config{
	"square": DefaultConfig(),
	"strafe": withProfile(DefaultConfig(),
		automation.Segment{Duration: 1, Vy: 0.8, Ramp: true},
		automation.Segment{Duration: 1.5, Vy: 0.8},
		automation.Segment{Duration: 1.5, Vy: -0.8},
	),
	"spin": withProfile(DefaultConfig(),
		automation.Segment{Duration: 1, Omega: 2, Ramp: true},
		automation.Segment{Duration: 3, Omega: 2},
	),
	"reverse": withProfile(DefaultConfig(),
		automation.Segment{Duration: 2, Vx: 1},
		automation.Segment{Duration: 2, Vx: -1},
	),
	"arc": withProfile(DefaultConfig(),
		automation.Segment{Duration: 1, Vx: 0.8, Omega: 0.6, Ramp: true},
		automation.Segment{Duration: 3, Vx: 0.8, Omega: 0.6},
		automation.Segment{Duration: 1, Ramp: true},
	),
	"triangle": triangle(),
	"limited": limited(),
}

// triangle is a three module chassis with modules on a circle of 0.3 m.
func triangle() *Config {
	cfg := withProfile(DefaultConfig(),
		automation.Segment{Duration: 1, Vx: 0.6, Vy: 0.6, Ramp: true},
		automation.Segment{Duration: 2, Vx: 0.6, Vy: 0.6, Omega: 1},
	)
	cfg.Modules = make(map[string]ModuleConfig, 3)
	for i, name := range []string{"a", "b", "c"} {
		angle := float64(i) * 2 * math.Pi / 3
		cfg.Modules[name] = DefaultModule(name, 0.3*math.Cos(angle), 0.3*math.Sin(angle))
	}
	return cfg
}

// limited drives hard against a tight effort budget.
func limited() *Config {
	cfg := withProfile(DefaultConfig(),
		automation.Segment{Duration: 2, Vx: 1.5, Omega: 1.5},
		automation.Segment{Duration: 2, Vx: -1.5},
	)
	cfg.Limiter.Budget = 1
	return cfg
}

func withProfile(cfg *Config, segments ...automation.Segment) *Config {
	cfg.Profile = segments
	total := 0.0
	for _, s := range segments {
		total += s.Duration
	}
	cfg.Duration = total
	return cfg
}

// GetPreset returns a copy of the named preset, or nil.
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
