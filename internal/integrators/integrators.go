// Package integrators advances the actuator plant across one control period.
//
// The controller output is held constant over the step, which is how a
// digital controller drives real motors between ticks.
package integrators

import "github.com/san-kum/swerve/internal/sim"

// Euler is the explicit first order method.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t float64, dt float64) sim.State {
	dx := dyn.Derivative(x, u, t)
	next := make(sim.State, len(x))
	for i := range x {
		next[i] = x[i] + dt*dx[i]
	}
	return next
}

// RK4 is the classic fourth order Runge-Kutta method. Stage buffers are
// reused between steps, so one RK4 must not be shared between goroutines.
type RK4 struct {
	k   [4]sim.State
	tmp sim.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) grow(n int) {
	if len(r.tmp) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(sim.State, n)
	}
	r.tmp = make(sim.State, n)
}

// stage evaluates the derivative at x + h·k into dst.
func (r *RK4) stage(dst sim.State, dyn sim.Dynamics, x, k sim.State, u sim.Control, t, h float64) {
	for i := range x {
		r.tmp[i] = x[i] + h*k[i]
	}
	copy(dst, dyn.Derivative(r.tmp, u, t+h))
}

func (r *RK4) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	r.grow(len(x))
	k1, k2, k3, k4 := r.k[0], r.k[1], r.k[2], r.k[3]

	copy(k1, dyn.Derivative(x, u, t))
	r.stage(k2, dyn, x, k1, u, t, dt/2)
	r.stage(k3, dyn, x, k2, u, t, dt/2)
	r.stage(k4, dyn, x, k3, u, t, dt)

	next := make(sim.State, len(x))
	for i := range x {
		next[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return next
}

// Substep splits every control period into N equal integration steps of
// Inner. Stiff actuators stay stable at low control rates this way.
type Substep struct {
	Inner sim.Integrator
	N     int
}

func (s *Substep) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	n := s.N
	if n < 1 {
		n = 1
	}
	h := dt / float64(n)
	for i := 0; i < n; i++ {
		x = s.Inner.Step(dyn, x, u, t+float64(i)*h, h)
	}
	return x
}
