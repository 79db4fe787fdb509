package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/san-kum/swerve/internal/viz"
)

var (
	dataDir     string
	verbose     bool
	configFile  string
	profileFile string
	integrator  string
	seed        int64
	trials      int

	logger = zap.NewNop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "swervesim",
		Short: "swerve drive controller lab",
		Long: `swervesim runs a swerve drive controller against simulated actuators,
stores and plots the runs, tunes PID gains and drives real motors on a CAN bus.

Run without arguments to pick a preset in the live view.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			if verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			l, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the UI.
			return viz.RunInteractive(zap.NewNop())
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".swervesim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a simulation and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&trials, "trials", 0, "run an ensemble of noisy trials instead of a single run")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a simulation in the live view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotColumns, "columns", nil, "trace columns to plot (default: every pivot angle)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run trace as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringSliceVar(&plotColumns, "columns", nil, "columns to export (default: all)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response and ringing of every module",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().Float64Var(&analyzeBand, "band", 0, "settling band as a fraction of the step (default 0.02)")
	analyzeCmd.Flags().StringVar(&analyzeSpectrum, "spectrum", "", "also plot the power spectrum of this trace column")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list chassis presets",
		RunE:  listPresets,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune [preset]",
		Short: "grid search PID gains",
		Long: `tune runs the simulation once per combination of gain values and reports
the combination minimizing a metric. Gains apply to every module.

  swervesim tune --param pivot.p=1:6:6 --param pivot.d=0,0.05,0.1`,
		Args: cobra.MaximumNArgs(1),
		RunE: tuneGains,
	}
	addConfigFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "gain=v1,v2,... or gain=lo:hi:n (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "steering_error", "metric to minimize")
	tuneCmd.Flags().BoolVar(&tuneSave, "save", false, "store the best run")

	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "drive motors on a CAN bus with a constant twist",
		RunE:  driveCAN,
	}
	driveCmd.Flags().StringVar(&configFile, "config", "", "chassis config file (yaml, needs can_id on every joint)")
	driveCmd.Flags().StringVar(&canIface, "iface", "can0", "CAN interface")
	driveCmd.Flags().Float64Var(&driveTwist.Vx, "vx", 0, "forward speed, m/s")
	driveCmd.Flags().Float64Var(&driveTwist.Vy, "vy", 0, "left speed, m/s")
	driveCmd.Flags().Float64Var(&driveTwist.Omega, "omega", 0, "turn rate, rad/s")
	driveCmd.Flags().DurationVar(&driveFor, "for", 0, "stop after this long (default: until interrupted)")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, presetsCmd, tuneCmd, driveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&profileFile, "profile", "", "twist profile file (yaml), replaces the configured one")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator (overrides config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "noise seed (overrides config)")
}
