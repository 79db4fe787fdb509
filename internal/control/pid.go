package control

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Gains configures one PID loop.
type Gains struct {
	P float64 `yaml:"p"`
	I float64 `yaml:"i"`
	D float64 `yaml:"d"`
	// IClamp bounds the magnitude of the integral contribution I*integral.
	// Zero disables the bound.
	IClamp float64 `yaml:"i_clamp"`
	// Max bounds the magnitude of the output. Zero disables the bound.
	Max float64 `yaml:"max"`
}

// Validate reports every gain that cannot produce a finite command.
func (g Gains) Validate() error {
	var errs error
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"p", g.P}, {"i", g.I}, {"d", g.D}, {"i_clamp", g.IClamp}, {"max", g.Max},
	} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			errs = multierr.Append(errs, errors.Errorf("gain %s is not finite", v.name))
		}
	}
	if g.IClamp < 0 {
		errs = multierr.Append(errs, errors.Errorf("i_clamp must be non-negative, got %g", g.IClamp))
	}
	if g.Max < 0 {
		errs = multierr.Append(errs, errors.Errorf("max must be non-negative, got %g", g.Max))
	}
	return errs
}

type PID struct {
	Gains
	integral float64
	prevErr  float64
	first    bool
	cmd      float64
}

func NewPID(g Gains) *PID {
	return &PID{
		Gains: g,
		first: true,
	}
}

// Update advances the loop by one sample of err taken dt seconds after the
// previous one and returns the new command.
//
// A dt that is not a positive finite number leaves the integral and
// derivative state untouched and yields the proportional term only. That
// term still becomes the held command.
func (p *PID) Update(err, dt float64) float64 {
	if math.IsNaN(err) || math.IsInf(err, 0) {
		return p.cmd
	}

	pTerm := p.P * err
	if !(dt > 0) || math.IsInf(dt, 1) {
		p.cmd = p.clamp(pTerm)
		return p.cmd
	}

	p.integral += err * dt
	if p.IClamp > 0 && p.I != 0 {
		limit := p.IClamp / math.Abs(p.I)
		p.integral = math.Max(-limit, math.Min(limit, p.integral))
	}

	dTerm := 0.0
	if !p.first {
		dTerm = p.D * (err - p.prevErr) / dt
	}
	p.first = false
	p.prevErr = err

	p.cmd = p.clamp(pTerm + p.I*p.integral + dTerm)
	return p.cmd
}

func (p *PID) clamp(u float64) float64 {
	if p.Max > 0 {
		return math.Max(-p.Max, math.Min(p.Max, u))
	}
	return u
}

// Command returns the output of the last update with a finite error.
func (p *PID) Command() float64 { return p.cmd }

// Integral returns the accumulated error integral.
func (p *PID) Integral() float64 { return p.integral }

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.cmd = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"p":       p.P,
		"i":       p.I,
		"d":       p.D,
		"i_clamp": p.IClamp,
		"max":     p.Max,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "p":
		p.P = value
	case "i":
		p.I = value
	case "d":
		p.D = value
	case "i_clamp":
		p.IClamp = value
	case "max":
		p.Max = value
	default:
		return errors.Errorf("unknown pid parameter: %s", name)
	}
	return nil
}
