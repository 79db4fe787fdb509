package sim

// Joint is a rotary actuator with inertia J and viscous damping b:
// J·dω/dt = effort − b·ω.
type Joint struct {
	Inertia float64
	Damping float64
}

func (j Joint) accel(effort, rate float64) float64 {
	return (effort - j.Damping*rate) / j.Inertia
}

// energy is the kinetic energy at rate.
func (j Joint) energy(rate float64) float64 {
	return 0.5 * j.Inertia * rate * rate
}

const (
	PivotAngle = iota
	PivotRate
	WheelAngle
	WheelRate
	ModuleStateDim
)

// Plant is the actuator dynamics of a swerve chassis. Each module owns four
// consecutive state values (see PivotAngle..WheelRate) and two consecutive
// controls, pivot effort then wheel effort. The chassis body itself is not
// simulated.
type Plant struct {
	modules int
	pivot   Joint
	wheel   Joint
}

func NewPlant(modules int, pivot, wheel Joint) *Plant {
	return &Plant{modules: modules, pivot: pivot, wheel: wheel}
}

func (p *Plant) Modules() int    { return p.modules }
func (p *Plant) StateDim() int   { return p.modules * ModuleStateDim }
func (p *Plant) ControlDim() int { return p.modules * 2 }

func (p *Plant) Derivative(x State, u Control, t float64) State {
	dx := make(State, len(x))
	for i := 0; i < p.modules; i++ {
		s := i * ModuleStateDim
		var pivotEffort, wheelEffort float64
		if len(u) >= 2*i+2 {
			pivotEffort, wheelEffort = u[2*i], u[2*i+1]
		}
		dx[s+PivotAngle] = x[s+PivotRate]
		dx[s+PivotRate] = p.pivot.accel(pivotEffort, x[s+PivotRate])
		dx[s+WheelAngle] = x[s+WheelRate]
		dx[s+WheelRate] = p.wheel.accel(wheelEffort, x[s+WheelRate])
	}
	return dx
}

// Energy is the total kinetic energy of every actuator.
func (p *Plant) Energy(x State) float64 {
	e := 0.0
	for i := 0; i < p.modules; i++ {
		s := i * ModuleStateDim
		e += p.pivot.energy(x[s+PivotRate]) + p.wheel.energy(x[s+WheelRate])
	}
	return e
}

// InitialState places every pivot at the given angle, at rest.
func (p *Plant) InitialState(angles []float64) State {
	x := make(State, p.StateDim())
	for i := 0; i < p.modules && i < len(angles); i++ {
		x[i*ModuleStateDim+PivotAngle] = angles[i]
	}
	return x
}
