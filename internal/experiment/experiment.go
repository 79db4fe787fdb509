package experiment

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/swerve/internal/automation"
	"github.com/san-kum/swerve/internal/config"
	"github.com/san-kum/swerve/internal/sim"
	"github.com/san-kum/swerve/internal/swerve"
)

// Experiment is one closed-loop simulated run of a chassis configuration.
type Experiment struct {
	name      string
	cfg       *config.Config
	profile   *automation.Profile
	plant     *sim.Plant
	bank      *sim.Bank
	ctrl      *swerve.Controller
	chassis   *sim.ChassisController
	simulator *sim.Simulator
	logger    *zap.Logger
}

// New validates cfg and wires plant, simulated actuators, controller and
// integrator together. The default metrics are attached.
func New(name string, cfg *config.Config, logger *zap.Logger) (*Experiment, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := DefaultRegistry()
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	limiter, err := reg.GetLimiter(cfg.Limiter)
	if err != nil {
		return nil, err
	}

	names := cfg.ModuleNames()
	plant := sim.NewPlant(len(names),
		sim.Joint{Inertia: cfg.Plant.PivotInertia, Damping: cfg.Plant.PivotDamping},
		sim.Joint{Inertia: cfg.Plant.WheelInertia, Damping: cfg.Plant.WheelDamping},
	)
	bank := sim.NewBank(len(names), cfg.Noise, cfg.Seed)

	mcs := cfg.SwerveConfigs(func(i int, _ string, _ config.ModuleConfig) (swerve.Actuator, swerve.Actuator) {
		return bank.Pivot(i), bank.Wheel(i)
	})
	ctrl, err := swerve.New(mcs, limiter,
		swerve.WithLogger(logger.Named("swerve")),
		swerve.WithDeadband(cfg.HeadingDeadband),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build controller")
	}

	profile := &automation.Profile{Name: name, Segments: cfg.Profile}
	chassis := sim.NewChassisController(ctrl, bank, profile.At, cfg.Dt())

	e := &Experiment{
		name:      name,
		cfg:       cfg,
		profile:   profile,
		plant:     plant,
		bank:      bank,
		ctrl:      ctrl,
		chassis:   chassis,
		simulator: sim.New(plant, integ, chassis),
		logger:    logger,
	}
	for _, m := range reg.DefaultMetrics(ctrl, plant) {
		e.simulator.AddMetric(m)
	}
	return e, nil
}

// Duration is the configured duration, or the profile length when unset.
func (e *Experiment) Duration() float64 {
	if e.cfg.Duration > 0 {
		return e.cfg.Duration
	}
	return e.profile.Duration()
}

// InitialState is the plant at rest with every pivot at its initial angle.
func (e *Experiment) InitialState() sim.State {
	names := e.cfg.ModuleNames()
	angles := make([]float64, len(names))
	for i, name := range names {
		angles[i] = e.cfg.Modules[name].InitialAngle
	}
	return e.plant.InitialState(angles)
}

func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{
		Dt:            e.cfg.Dt(),
		Duration:      e.Duration(),
		Seed:          e.cfg.Seed,
		ValidateState: true,
	}
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	e.chassis.Reset()

	simCfg := e.SimConfig()
	e.logger.Info("experiment starting",
		zap.String("name", e.name),
		zap.Int("modules", e.ctrl.Len()),
		zap.Float64("dt", simCfg.Dt),
		zap.Float64("duration", simCfg.Duration),
		zap.String("integrator", e.cfg.Integrator),
		zap.String("limiter", e.cfg.Limiter.Type))

	result, err := e.simulator.Run(ctx, e.InitialState(), simCfg)
	if err != nil {
		return result, errors.Wrapf(err, "experiment %s", e.name)
	}
	for _, simErr := range result.Errors {
		e.logger.Warn("simulation stopped early", zap.Error(simErr))
	}
	e.logger.Info("experiment finished",
		zap.String("name", e.name),
		zap.Int("steps", result.StepsTaken),
		zap.Any("metrics", result.Metrics))
	return result, nil
}

func (e *Experiment) Name() string { return e.name }

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Plant() *sim.Plant { return e.plant }

func (e *Experiment) Controller() *swerve.Controller { return e.ctrl }

func (e *Experiment) Chassis() *sim.ChassisController { return e.chassis }

func (e *Experiment) Profile() *automation.Profile { return e.profile }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}
