package config

import (
	"math"
	"os"
	"sort"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/swerve/internal/automation"
	"github.com/san-kum/swerve/internal/control"
	"github.com/san-kum/swerve/internal/swerve"
)

const (
	DefaultRate       = 500.0
	DefaultDuration   = 4.0
	DefaultIntegrator = "rk4"
	DefaultLimiter    = "budget"
	DefaultBudget     = 4.0

	DefaultPivotInertia = 0.005
	DefaultPivotDamping = 0.01
	DefaultWheelInertia = 0.002
	DefaultWheelDamping = 0.001

	DefaultWheelRadius = 0.05
)

var (
	ErrNoModules   = errors.New("config: no modules configured")
	ErrInvalid     = errors.New("config: invalid value")
	ErrUnknownGain = errors.New("config: unknown gain")
)

type Config struct {
	Rate            float64                 `yaml:"rate"`
	Duration        float64                 `yaml:"duration"`
	Integrator      string                  `yaml:"integrator"`
	Seed            int64                   `yaml:"seed"`
	Noise           float64                 `yaml:"noise"`
	HeadingDeadband float64                 `yaml:"heading_deadband"`
	Limiter         LimiterConfig           `yaml:"limiter"`
	Plant           PlantConfig             `yaml:"plant"`
	Modules         map[string]ModuleConfig `yaml:"modules"`
	Profile         []automation.Segment    `yaml:"profile"`
}

type LimiterConfig struct {
	Type   string  `yaml:"type"`
	Scale  float64 `yaml:"scale"`
	Budget float64 `yaml:"budget"`
}

// PlantConfig holds the inertia and viscous damping of the simulated
// actuators, shared by every module.
type PlantConfig struct {
	PivotInertia float64 `yaml:"pivot_inertia"`
	PivotDamping float64 `yaml:"pivot_damping"`
	WheelInertia float64 `yaml:"wheel_inertia"`
	WheelDamping float64 `yaml:"wheel_damping"`
}

type ModuleConfig struct {
	Position     []float64   `yaml:"position"`
	WheelRadius  float64     `yaml:"wheel_radius"`
	InitialAngle float64     `yaml:"initial_angle"`
	Pivot        JointConfig `yaml:"pivot"`
	Wheel        JointConfig `yaml:"wheel"`
}

// JointConfig describes one actuator of a module. Offset only applies to
// the pivot and Radius only to the wheel. CANID, Gear and EffortScale are
// used when driving real motors; CANID 0 means not on the bus.
type JointConfig struct {
	Name        string        `yaml:"name"`
	Offset      float64       `yaml:"offset,omitempty"`
	Radius      float64       `yaml:"radius,omitempty"`
	CANID       int           `yaml:"can_id,omitempty"`
	Gear        float64       `yaml:"gear,omitempty"`
	EffortScale float64       `yaml:"effort_scale,omitempty"`
	PID         control.Gains `yaml:"pid"`
}

// Radius returns the wheel radius, preferring wheel.radius over
// wheel_radius.
func (m ModuleConfig) Radius() float64 {
	if m.Wheel.Radius != 0 {
		return m.Wheel.Radius
	}
	return m.WheelRadius
}

func (m ModuleConfig) Point() r2.Point {
	if len(m.Position) != 2 {
		return r2.Point{}
	}
	return r2.Point{X: m.Position[0], Y: m.Position[1]}
}

func DefaultPlant() PlantConfig {
	return PlantConfig{
		PivotInertia: DefaultPivotInertia,
		PivotDamping: DefaultPivotDamping,
		WheelInertia: DefaultWheelInertia,
		WheelDamping: DefaultWheelDamping,
	}
}

func DefaultPivotGains() control.Gains {
	return control.Gains{P: 2, I: 0, D: 0.1, Max: 5}
}

func DefaultWheelGains() control.Gains {
	return control.Gains{P: 0.05, I: 0.5, IClamp: 1, Max: 2}
}

// DefaultModule returns a module at (x, y) with default gains.
func DefaultModule(name string, x, y float64) ModuleConfig {
	return ModuleConfig{
		Position:    []float64{x, y},
		WheelRadius: DefaultWheelRadius,
		Pivot:       JointConfig{Name: name + "_pivot", PID: DefaultPivotGains()},
		Wheel:       JointConfig{Name: name + "_wheel", PID: DefaultWheelGains()},
	}
}

// DefaultConfig is a square four module chassis driving forward.
func DefaultConfig() *Config {
	return &Config{
		Rate:            DefaultRate,
		Duration:        DefaultDuration,
		Integrator:      DefaultIntegrator,
		HeadingDeadband: swerve.DefaultDeadband,
		Limiter:         LimiterConfig{Type: DefaultLimiter, Scale: 1, Budget: DefaultBudget},
		Plant:           DefaultPlant(),
		Modules: map[string]ModuleConfig{
			"front_left":  DefaultModule("front_left", 0.3, 0.3),
			"front_right": DefaultModule("front_right", 0.3, -0.3),
			"rear_left":   DefaultModule("rear_left", -0.3, 0.3),
			"rear_right":  DefaultModule("rear_right", -0.3, -0.3),
		},
		Profile: []automation.Segment{
			{Duration: 2, Vx: 1, Ramp: true},
			{Duration: 2, Vx: 1},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := DefaultConfig()
	cfg.Modules = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if cfg.Modules == nil {
		cfg.Modules = DefaultConfig().Modules
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy; tuning mutates gains on the copy only.
func (c *Config) Clone() *Config {
	out := *c
	out.Modules = make(map[string]ModuleConfig, len(c.Modules))
	for name, m := range c.Modules {
		m.Position = append([]float64(nil), m.Position...)
		out.Modules[name] = m
	}
	out.Profile = append([]automation.Segment(nil), c.Profile...)
	return &out
}

// Dt is the control period in seconds.
func (c *Config) Dt() float64 {
	return 1 / c.Rate
}

// ModuleNames returns the module names in sorted order, which is also the
// order of modules in the controller and the simulated state.
func (c *Config) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for name := range c.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate collects every configuration problem.
func (c *Config) Validate() error {
	var errs error
	invalid := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalid, format, args...))
	}

	if !positive(c.Rate) {
		invalid("rate must be positive, got %g", c.Rate)
	}
	if c.Duration < 0 || !finite(c.Duration) {
		invalid("duration must be non-negative, got %g", c.Duration)
	}
	if c.Noise < 0 || !finite(c.Noise) {
		invalid("noise must be non-negative, got %g", c.Noise)
	}
	if c.HeadingDeadband < 0 || !finite(c.HeadingDeadband) {
		invalid("heading_deadband must be non-negative, got %g", c.HeadingDeadband)
	}
	switch c.Limiter.Type {
	case "", "none", "budget", "fixed":
	default:
		invalid("unknown limiter type %q", c.Limiter.Type)
	}

	p := c.Plant
	if !positive(p.PivotInertia) || !positive(p.WheelInertia) {
		invalid("plant inertia must be positive")
	}
	if p.PivotDamping < 0 || p.WheelDamping < 0 {
		invalid("plant damping must be non-negative")
	}

	if len(c.Modules) == 0 {
		errs = multierr.Append(errs, ErrNoModules)
	}
	canIDs := make(map[int]string)
	checkJoint := func(module, joint string, j JointConfig) {
		if j.Gear < 0 || !finite(j.Gear) || j.EffortScale < 0 || !finite(j.EffortScale) {
			invalid("module %q: %s gear and effort_scale must be non-negative", module, joint)
		}
		if j.CANID == 0 {
			return
		}
		if j.CANID < 1 || j.CANID > 8 {
			invalid("module %q: %s can_id must be in 1..8, got %d", module, joint, j.CANID)
			return
		}
		if other, dup := canIDs[j.CANID]; dup {
			invalid("module %q: %s can_id %d already used by %s", module, joint, j.CANID, other)
			return
		}
		canIDs[j.CANID] = module + "." + joint
	}
	for _, name := range c.ModuleNames() {
		m := c.Modules[name]
		if len(m.Position) != 2 {
			invalid("module %q: position needs 2 values, got %d", name, len(m.Position))
		}
		if !positive(m.Radius()) {
			invalid("module %q: wheel radius must be positive, got %g", name, m.Radius())
		}
		if !finite(m.InitialAngle) || !finite(m.Pivot.Offset) {
			invalid("module %q: angles must be finite", name)
		}
		if err := m.Pivot.PID.Validate(); err != nil {
			invalid("module %q: pivot pid: %v", name, err)
		}
		if err := m.Wheel.PID.Validate(); err != nil {
			invalid("module %q: wheel pid: %v", name, err)
		}
		checkJoint(name, "pivot", m.Pivot)
		checkJoint(name, "wheel", m.Wheel)
	}

	if err := (&automation.Profile{Segments: c.Profile}).Validate(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "profile"))
	}
	return errs
}

// SwerveConfigs converts the modules into controller configurations in
// ModuleNames order. actuators supplies the pivot and wheel of each module.
func (c *Config) SwerveConfigs(actuators func(i int, name string, m ModuleConfig) (pivot, wheel swerve.Actuator)) []swerve.ModuleConfig {
	names := c.ModuleNames()
	out := make([]swerve.ModuleConfig, len(names))
	for i, name := range names {
		m := c.Modules[name]
		pivot, wheel := actuators(i, name, m)
		out[i] = swerve.ModuleConfig{
			Name:        name,
			Position:    m.Point(),
			WheelRadius: m.Radius(),
			PivotOffset: m.Pivot.Offset,
			PivotGains:  m.Pivot.PID,
			WheelGains:  m.Wheel.PID,
			Pivot:       pivot,
			Wheel:       wheel,
		}
	}
	return out
}

// SetGain sets a PID gain on every module. name is "pivot.<param>" or
// "wheel.<param>" with param one of p, i, d, i_clamp, max.
func (c *Config) SetGain(name string, value float64) error {
	joint, param, ok := strings.Cut(name, ".")
	if !ok || (joint != "pivot" && joint != "wheel") {
		return errors.Wrapf(ErrUnknownGain, "%q", name)
	}

	for mod, m := range c.Modules {
		pid := control.NewPID(m.Pivot.PID)
		if joint == "wheel" {
			pid = control.NewPID(m.Wheel.PID)
		}
		if err := pid.SetParam(param, value); err != nil {
			return errors.Wrapf(ErrUnknownGain, "%q", name)
		}
		if joint == "wheel" {
			m.Wheel.PID = pid.Gains
		} else {
			m.Pivot.PID = pid.Gains
		}
		c.Modules[mod] = m
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
