package metrics

import (
	"math"

	"github.com/san-kum/swerve/internal/sim"
)

// Energer reports the stored energy of a state.
type Energer interface {
	Energy(x sim.State) float64
}

// PeakEnergy is the largest kinetic energy held by the actuators over a run.
type PeakEnergy struct {
	name string
	sys  Energer
	peak float64
}

func NewPeakEnergy(sys Energer) *PeakEnergy {
	return &PeakEnergy{name: "peak_energy", sys: sys}
}

func (e *PeakEnergy) Name() string { return e.name }

func (e *PeakEnergy) Observe(x sim.State, u sim.Control, t float64) {
	e.peak = math.Max(e.peak, e.sys.Energy(x))
}

func (e *PeakEnergy) Value() float64 { return e.peak }

func (e *PeakEnergy) Reset() { e.peak = 0 }
