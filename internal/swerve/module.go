package swerve

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/san-kum/swerve/internal/control"
)

// ModuleConfig describes one module at initialization.
type ModuleConfig struct {
	Name        string
	Position    r2.Point
	WheelRadius float64
	PivotOffset float64
	PivotGains  control.Gains
	WheelGains  control.Gains
	Pivot       Actuator
	Wheel       Actuator
}

// Validate collects every problem with the module description.
func (mc ModuleConfig) Validate() error {
	var errs error
	invalid := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalidConfig, "module %q: "+format, append([]interface{}{mc.Name}, args...)...))
	}

	if mc.Name == "" {
		invalid("name is required")
	}
	if !finite(mc.Position.X) || !finite(mc.Position.Y) {
		invalid("position %v is not finite", mc.Position)
	}
	if !(mc.WheelRadius > 0) || math.IsInf(mc.WheelRadius, 0) {
		invalid("wheel radius must be positive, got %g", mc.WheelRadius)
	}
	if !finite(mc.PivotOffset) {
		invalid("pivot offset is not finite")
	}
	if err := mc.PivotGains.Validate(); err != nil {
		invalid("pivot pid: %v", err)
	}
	if err := mc.WheelGains.Validate(); err != nil {
		invalid("wheel pid: %v", err)
	}
	if mc.Pivot == nil {
		invalid("pivot actuator is missing")
	}
	if mc.Wheel == nil {
		invalid("wheel actuator is missing")
	}
	return errs
}

// Status is the telemetry of one module for the last tick.
type Status struct {
	Target
	Angle        float64 // measured pivot angle used for the tick
	WheelRate    float64 // measured wheel rate used for the tick
	WheelError   float64
	PivotCommand float64
	WheelEffort  float64 // wheel effort before the chassis scale
	WheelCommand float64 // wheel effort actually written
}

// Module is one steerable and driven wheel. Its controllers and held heading
// are owned exclusively by the module.
type Module struct {
	Geometry
	name     string
	pivot    Actuator
	wheel    Actuator
	pivotPID *control.PID
	wheelPID *control.PID

	hold    float64
	holding bool

	// last finite readings, reused when a sensor returns garbage
	angle float64
	rate  float64

	status Status
}

func newModule(mc ModuleConfig) Module {
	return Module{
		Geometry: Geometry{
			Position:    mc.Position,
			WheelRadius: mc.WheelRadius,
			PivotOffset: mc.PivotOffset,
		},
		name:     mc.Name,
		pivot:    mc.Pivot,
		wheel:    mc.Wheel,
		pivotPID: control.NewPID(mc.PivotGains),
		wheelPID: control.NewPID(mc.WheelGains),
	}
}

func (m *Module) Name() string { return m.name }

// PivotPID exposes the steering loop for tuning.
func (m *Module) PivotPID() *control.PID { return m.pivotPID }

// WheelPID exposes the wheel speed loop for tuning.
func (m *Module) WheelPID() *control.PID { return m.wheelPID }

// sample refreshes the measured state, keeping the previous value of any
// reading that is not finite.
func (m *Module) sample() {
	if a := m.pivot.Position(); finite(a) {
		m.angle = a
	}
	if r := m.wheel.Velocity(); finite(r) {
		m.rate = r
	}
	if !m.holding {
		m.hold = m.angle
		m.holding = true
	}
}

// step runs the kinematics and both loops, writes the pivot command and
// returns the unscaled wheel effort.
func (m *Module) step(tw Twist, dt, deadband float64) float64 {
	m.sample()

	t := m.Solve(tw, m.angle, m.hold, deadband)
	m.hold = t.Angle

	wheelErr := t.WheelSpeed - m.rate
	pivotCmd := m.pivotPID.Update(t.PivotError, dt)
	wheelEffort := m.wheelPID.Update(wheelErr, dt)
	m.pivot.SetCommand(pivotCmd)

	m.status = Status{
		Target:       t,
		Angle:        m.angle,
		WheelRate:    m.rate,
		WheelError:   wheelErr,
		PivotCommand: pivotCmd,
		WheelEffort:  wheelEffort,
	}
	return wheelEffort
}

func (m *Module) reset() {
	m.pivotPID.Reset()
	m.wheelPID.Reset()
	m.holding = false
	m.status = Status{}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
