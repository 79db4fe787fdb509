package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/swerve/internal/canio"
	"github.com/san-kum/swerve/internal/config"
	"github.com/san-kum/swerve/internal/experiment"
	"github.com/san-kum/swerve/internal/runner"
	"github.com/san-kum/swerve/internal/swerve"
)

var (
	canIface   string
	driveTwist swerve.Twist
	driveFor   time.Duration
)

// motorsFor puts one motor per joint of cfg on bus, in module order.
func motorsFor(cfg *config.Config, bus *canio.Bus) ([]*canio.Motor, error) {
	var motors []*canio.Motor
	for _, name := range cfg.ModuleNames() {
		m := cfg.Modules[name]
		for _, j := range []struct {
			joint string
			cfg   config.JointConfig
		}{{"pivot", m.Pivot}, {"wheel", m.Wheel}} {
			if j.cfg.CANID == 0 {
				return nil, errors.Errorf("module %q: %s has no can_id", name, j.joint)
			}
			scale := j.cfg.EffortScale
			if scale == 0 {
				scale = 1
			}
			motor, err := canio.NewMotor(j.cfg.CANID, j.cfg.Gear, scale)
			if err != nil {
				return nil, errors.Wrapf(err, "module %q %s", name, j.joint)
			}
			if err := bus.Add(motor); err != nil {
				return nil, err
			}
			motors = append(motors, motor)
		}
	}
	return motors, nil
}

func driveCAN(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		return fmt.Errorf("drive needs --config with can_id on every joint")
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	sock, err := canio.Open(canIface)
	if err != nil {
		return err
	}
	closeSock := sync.OnceFunc(func() { sock.Close() })
	defer closeSock()

	bus := canio.NewBus(sock, logger.Named("can"))
	motors, err := motorsFor(cfg, bus)
	if err != nil {
		return err
	}

	limiter, err := experiment.DefaultRegistry().GetLimiter(cfg.Limiter)
	if err != nil {
		return err
	}
	mcs := cfg.SwerveConfigs(func(i int, _ string, _ config.ModuleConfig) (swerve.Actuator, swerve.Actuator) {
		return motors[2*i], motors[2*i+1]
	})
	ctrl, err := swerve.New(mcs, limiter,
		swerve.WithLogger(logger.Named("swerve")),
		swerve.WithDeadband(cfg.HeadingDeadband))
	if err != nil {
		return err
	}

	r, err := runner.New(ctrl, runner.Constant(driveTwist), cfg.Rate,
		runner.WithLogger(logger.Named("runner")),
		runner.WithAfterTick(bus.Flush))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if driveFor > 0 {
		ctx, cancel = context.WithTimeout(ctx, driveFor)
		defer cancel()
	}

	listenErr := make(chan error, 1)
	go func() { listenErr <- bus.Listen(ctx, sock) }()

	logger.Info("driving",
		zap.String("iface", canIface),
		zap.Ints("motors", bus.IDs()),
		zap.Float64("vx", driveTwist.Vx),
		zap.Float64("vy", driveTwist.Vy),
		zap.Float64("omega", driveTwist.Omega))

	err = r.Run(ctx)

	// Recv blocks until the socket closes.
	closeSock()
	if lerr := <-listenErr; lerr != nil && !errors.Is(lerr, context.Canceled) && !errors.Is(lerr, context.DeadlineExceeded) {
		logger.Warn("can listener stopped", zap.Error(lerr))
	}

	st := r.Stats()
	fmt.Printf("ticks: %d, overruns: %d, max period: %v, flush errors: %d\n", st.Ticks, st.Overruns, st.MaxPeriod, st.HookErrors)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
