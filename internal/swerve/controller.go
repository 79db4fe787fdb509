package swerve

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Controller drives a fixed set of modules from one twist per tick.
type Controller struct {
	modules  []Module
	limiter  EffortLimiter
	efforts  []float64
	deadband float64
	scale    float64
	logger   *zap.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger used during construction and reset.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDeadband sets the ground speed below which modules hold their heading.
func WithDeadband(d float64) Option {
	return func(c *Controller) {
		if d >= 0 && !math.IsInf(d, 0) {
			c.deadband = d
		}
	}
}

// New validates every module and builds a controller. A nil limiter never
// scales wheel efforts.
func New(cfgs []ModuleConfig, limiter EffortLimiter, opts ...Option) (*Controller, error) {
	c := &Controller{
		limiter:  limiter,
		deadband: DefaultDeadband,
		scale:    1,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = FixedLimiter{Value: 1}
	}

	if len(cfgs) == 0 {
		return nil, ErrNoModules
	}

	var errs error
	seen := make(map[string]bool, len(cfgs))
	for _, mc := range cfgs {
		if err := mc.Validate(); err != nil {
			errs = multierr.Append(errs, err)
		}
		if mc.Name != "" && seen[mc.Name] {
			errs = multierr.Append(errs, errors.Wrapf(ErrInvalidConfig, "module %q: duplicate name", mc.Name))
		}
		seen[mc.Name] = true
	}
	if errs != nil {
		return nil, errs
	}

	c.modules = make([]Module, len(cfgs))
	c.efforts = make([]float64, len(cfgs))
	for i, mc := range cfgs {
		c.modules[i] = newModule(mc)
		c.logger.Debug("module configured",
			zap.String("name", mc.Name),
			zap.Float64("x", mc.Position.X),
			zap.Float64("y", mc.Position.Y),
			zap.Float64("wheel_radius", mc.WheelRadius),
			zap.Float64("pivot_offset", mc.PivotOffset))
	}
	c.logger.Info("swerve controller ready",
		zap.Int("modules", len(c.modules)),
		zap.Float64("deadband", c.deadband))
	return c, nil
}

// Update runs one control tick for twist tw, period after the previous tick.
func (c *Controller) Update(tw Twist, period time.Duration) {
	dt := period.Seconds()
	for i := range c.modules {
		c.efforts[i] = c.modules[i].step(tw, dt, c.deadband)
	}

	c.scale = clampScale(c.limiter.Scale(c.efforts))
	for i := range c.modules {
		m := &c.modules[i]
		cmd := c.scale * c.efforts[i]
		m.wheel.SetCommand(cmd)
		m.status.WheelCommand = cmd
	}
}

// Halt writes a zero command to every actuator without touching loop state.
func (c *Controller) Halt() {
	for i := range c.modules {
		c.modules[i].pivot.SetCommand(0)
		c.modules[i].wheel.SetCommand(0)
	}
}

// Reset clears every loop and forgets the held headings.
func (c *Controller) Reset() {
	for i := range c.modules {
		c.modules[i].reset()
	}
	c.scale = 1
	c.logger.Debug("swerve controller reset")
}

// Len returns the number of modules.
func (c *Controller) Len() int { return len(c.modules) }

// Module returns the i-th module in configuration order.
func (c *Controller) Module(i int) *Module { return &c.modules[i] }

// Status returns the telemetry of module i for the last tick.
func (c *Controller) Status(i int) Status { return c.modules[i].status }

// Statuses copies every module status into dst, growing it if needed.
func (c *Controller) Statuses(dst []Status) []Status {
	dst = dst[:0]
	for i := range c.modules {
		dst = append(dst, c.modules[i].status)
	}
	return dst
}

// Scale returns the wheel scale applied on the last tick.
func (c *Controller) Scale() float64 { return c.scale }

// Names returns the module names in configuration order.
func (c *Controller) Names() []string {
	names := make([]string, len(c.modules))
	for i := range c.modules {
		names[i] = c.modules[i].name
	}
	return names
}
