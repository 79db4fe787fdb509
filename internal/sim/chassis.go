package sim

import (
	"math/rand"
	"time"

	"github.com/san-kum/swerve/internal/swerve"
)

// Bank exposes the simulated plant state as swerve actuators. Readings come
// from the last observed state, optionally with Gaussian noise, and commands
// are collected into a control vector in plant layout.
type Bank struct {
	x     State
	u     Control
	noise float64
	rng   *rand.Rand
}

func NewBank(modules int, noise float64, seed int64) *Bank {
	return &Bank{
		x:     make(State, modules*ModuleStateDim),
		u:     make(Control, modules*2),
		noise: noise,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Observe latches the plant state the actuators report from.
func (b *Bank) Observe(x State) { copy(b.x, x) }

// Control returns a copy of the commands written since the last call.
func (b *Bank) Control() Control { return b.u.Clone() }

func (b *Bank) Pivot(module int) swerve.Actuator {
	return &simActuator{bank: b, state: module*ModuleStateDim + PivotAngle, control: 2 * module}
}

func (b *Bank) Wheel(module int) swerve.Actuator {
	return &simActuator{bank: b, state: module*ModuleStateDim + WheelAngle, control: 2*module + 1}
}

func (b *Bank) read(i int) float64 {
	if b.noise > 0 {
		return b.x[i] + b.rng.NormFloat64()*b.noise
	}
	return b.x[i]
}

type simActuator struct {
	bank    *Bank
	state   int
	control int
}

func (a *simActuator) Position() float64    { return a.bank.read(a.state) }
func (a *simActuator) Velocity() float64    { return a.bank.read(a.state + 1) }
func (a *simActuator) SetCommand(e float64) { a.bank.u[a.control] = e }

// Command yields the twist requested at simulated time t.
type Command func(t float64) swerve.Twist

// ChassisController closes the loop between the plant and a swerve
// controller. Each Compute is one control tick.
type ChassisController struct {
	ctrl    *swerve.Controller
	bank    *Bank
	command Command
	dt      float64
	last    float64
	started bool
	twist   swerve.Twist
}

// NewChassisController drives ctrl, whose actuators must come from bank,
// with the twists from command. dt is the nominal period used for the
// first tick.
func NewChassisController(ctrl *swerve.Controller, bank *Bank, command Command, dt float64) *ChassisController {
	return &ChassisController{ctrl: ctrl, bank: bank, command: command, dt: dt}
}

func (c *ChassisController) Compute(x State, t float64) Control {
	period := c.dt
	if c.started {
		period = t - c.last
	}
	c.last, c.started = t, true

	c.bank.Observe(x)
	c.twist = swerve.Twist{}
	if c.command != nil {
		c.twist = c.command(t)
	}
	c.ctrl.Update(c.twist, time.Duration(period*float64(time.Second)))
	return c.bank.Control()
}

// SetCommand replaces the twist source from the next tick on.
func (c *ChassisController) SetCommand(command Command) { c.command = command }

// Twist returns the command used on the last tick.
func (c *ChassisController) Twist() swerve.Twist { return c.twist }

func (c *ChassisController) Controller() *swerve.Controller { return c.ctrl }

// Reset clears the controller and restarts the tick clock.
func (c *ChassisController) Reset() {
	c.ctrl.Reset()
	c.started = false
	c.twist = swerve.Twist{}
}
