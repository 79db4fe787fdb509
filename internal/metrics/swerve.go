package metrics

import (
	"math"

	"github.com/san-kum/swerve/internal/sim"
	"github.com/san-kum/swerve/internal/swerve"
)

// Source exposes the per-module telemetry of the last control tick.
// *swerve.Controller satisfies it.
type Source interface {
	Len() int
	Status(i int) swerve.Status
	Scale() float64
}

// rms accumulates a root mean square over every module and tick.
type rms struct {
	name  string
	src   Source
	value func(swerve.Status) float64
	sum   float64
	n     int
}

func (r *rms) Name() string { return r.name }

func (r *rms) Observe(x sim.State, u sim.Control, t float64) {
	for i := 0; i < r.src.Len(); i++ {
		v := r.value(r.src.Status(i))
		r.sum += v * v
		r.n++
	}
}

func (r *rms) Value() float64 {
	if r.n == 0 {
		return 0
	}
	return math.Sqrt(r.sum / float64(r.n))
}

func (r *rms) Reset() {
	r.sum = 0
	r.n = 0
}

// NewSteeringError is the RMS pivot error in radians.
func NewSteeringError(src Source) sim.Metric {
	return &rms{name: "steering_error", src: src, value: func(s swerve.Status) float64 { return s.PivotError }}
}

// NewWheelError is the RMS wheel speed error in rad/s.
func NewWheelError(src Source) sim.Metric {
	return &rms{name: "wheel_error", src: src, value: func(s swerve.Status) float64 { return s.WheelError }}
}

// Saturation is the fraction of ticks on which the effort limiter scaled
// the wheels down.
type Saturation struct {
	src     Source
	limited int
	samples int
}

func NewSaturation(src Source) *Saturation {
	return &Saturation{src: src}
}

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(x sim.State, u sim.Control, t float64) {
	if s.src.Scale() < 1 {
		s.limited++
	}
	s.samples++
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.limited) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.limited = 0
	s.samples = 0
}

// Flips counts how often a module switches between driving forward and
// reversed. Held ticks do not count.
type Flips struct {
	src     Source
	flipped []bool
	count   int
}

func NewFlips(src Source) *Flips {
	return &Flips{src: src}
}

func (f *Flips) Name() string { return "flips" }

func (f *Flips) Observe(x sim.State, u sim.Control, t float64) {
	n := f.src.Len()
	if len(f.flipped) != n {
		f.flipped = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		st := f.src.Status(i)
		if st.Held {
			continue
		}
		if st.Flipped != f.flipped[i] {
			f.count++
			f.flipped[i] = st.Flipped
		}
	}
}

func (f *Flips) Value() float64 { return float64(f.count) }

func (f *Flips) Reset() {
	f.flipped = nil
	f.count = 0
}

// Aligned is the fraction of ticks on which every module pointed within
// tolerance of its target.
type Aligned struct {
	src       Source
	tolerance float64
	aligned   int
	samples   int
}

func NewAligned(src Source, tolerance float64) *Aligned {
	return &Aligned{src: src, tolerance: tolerance}
}

func (a *Aligned) Name() string { return "aligned" }

func (a *Aligned) Observe(x sim.State, u sim.Control, t float64) {
	a.samples++
	for i := 0; i < a.src.Len(); i++ {
		if math.Abs(a.src.Status(i).PivotError) > a.tolerance {
			return
		}
	}
	a.aligned++
}

func (a *Aligned) Value() float64 {
	if a.samples == 0 {
		return 1.0
	}
	return float64(a.aligned) / float64(a.samples)
}

func (a *Aligned) Reset() {
	a.aligned = 0
	a.samples = 0
}
