package metrics

import (
	"math"

	"github.com/san-kum/swerve/internal/sim"
)

// ControlEffort is the mean over ticks of the summed effort magnitude of a
// subset of the control vector, picked as every stride-th value from first.
type ControlEffort struct {
	name    string
	first   int
	stride  int
	sum     float64
	samples int
}

// NewControlEffort covers every actuator.
func NewControlEffort() *ControlEffort {
	return &ControlEffort{name: "control_effort", stride: 1}
}

// NewWheelEffort covers the wheels only, which is what the effort limiter
// acts on.
func NewWheelEffort() *ControlEffort {
	return &ControlEffort{name: "wheel_effort", first: 1, stride: 2}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x sim.State, u sim.Control, t float64) {
	for i := c.first; i < len(u); i += c.stride {
		c.sum += math.Abs(u[i])
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
