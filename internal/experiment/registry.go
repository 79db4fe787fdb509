package experiment

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/swerve/internal/config"
	"github.com/san-kum/swerve/internal/integrators"
	"github.com/san-kum/swerve/internal/metrics"
	"github.com/san-kum/swerve/internal/sim"
	"github.com/san-kum/swerve/internal/swerve"
)

// AlignedTolerance is the pivot error, in radians, under which a module
// counts as aligned.
const AlignedTolerance = 0.05

var (
	ErrUnknownIntegrator = errors.New("unknown integrator")
	ErrUnknownLimiter    = errors.New("unknown limiter")
)

type Registry struct {
	integrators map[string]func() sim.Integrator
	limiters    map[string]func(config.LimiterConfig) swerve.EffortLimiter
}

func NewRegistry() *Registry {
	return &Registry{
		integrators: make(map[string]func() sim.Integrator),
		limiters:    make(map[string]func(config.LimiterConfig) swerve.EffortLimiter),
	}
}

// DefaultRegistry knows every integrator and limiter shipped with swerve.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.integrators["euler"] = func() sim.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() sim.Integrator { return integrators.NewRK4() }
	r.integrators["rk4x4"] = func() sim.Integrator {
		return &integrators.Substep{Inner: integrators.NewRK4(), N: 4}
	}

	none := func(config.LimiterConfig) swerve.EffortLimiter { return nil }
	r.limiters[""] = none
	r.limiters["none"] = none
	r.limiters["fixed"] = func(c config.LimiterConfig) swerve.EffortLimiter {
		return swerve.FixedLimiter{Value: c.Scale}
	}
	r.limiters["budget"] = func(c config.LimiterConfig) swerve.EffortLimiter {
		return swerve.BudgetLimiter{Budget: c.Budget}
	}

	return r
}

func (r *Registry) RegisterIntegrator(name string, fn func() sim.Integrator) {
	r.integrators[name] = fn
}

func (r *Registry) GetIntegrator(name string) (sim.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownIntegrator, "%q", name)
	}
	return fn(), nil
}

func (r *Registry) GetLimiter(c config.LimiterConfig) (swerve.EffortLimiter, error) {
	fn, ok := r.limiters[c.Type]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLimiter, "%q", c.Type)
	}
	return fn(c), nil
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func (r *Registry) ListLimiters() []string {
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns fresh instances of every standard metric.
func (r *Registry) DefaultMetrics(src metrics.Source, plant *sim.Plant) []sim.Metric {
	return []sim.Metric{
		metrics.NewControlEffort(),
		metrics.NewWheelEffort(),
		metrics.NewSteeringError(src),
		metrics.NewWheelError(src),
		metrics.NewSaturation(src),
		metrics.NewFlips(src),
		metrics.NewAligned(src, AlignedTolerance),
		metrics.NewPeakEnergy(plant),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
