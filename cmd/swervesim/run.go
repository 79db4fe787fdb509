package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/swerve/internal/automation"
	"github.com/san-kum/swerve/internal/config"
	"github.com/san-kum/swerve/internal/experiment"
	"github.com/san-kum/swerve/internal/storage"
	"github.com/san-kum/swerve/internal/viz"
)

// loadConfig resolves the configuration of a command: --config, else the
// named preset, else the default chassis. Flags override file values.
func loadConfig(cmd *cobra.Command, args []string) (string, *config.Config, error) {
	name := "default"
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return "", nil, err
		}
		name, cfg = configName(configFile), c
	case len(args) > 0:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return "", nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
		name = args[0]
	default:
		cfg = config.DefaultConfig()
	}

	if profileFile != "" {
		p, err := automation.LoadProfile(profileFile)
		if err != nil {
			return "", nil, err
		}
		cfg.Profile = p.Segments
		cfg.Duration = p.Duration()
		if p.Name != "" {
			name = p.Name
		}
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator = integrator
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	return name, cfg, cfg.Validate()
}

func configName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	name, cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if trials > 0 {
		return runTrials(ctx, name, cfg)
	}

	exp, err := experiment.New(name, cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("running %s (%d modules, %.2fs at %.0f Hz)...\n", name, len(cfg.Modules), exp.Duration(), cfg.Rate)
	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(runMetadata(name, cfg), result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	for _, e := range result.Errors {
		fmt.Printf("error: %v\n", e)
	}
	printMetrics(result.Metrics)
	return nil
}

func runMetadata(name string, cfg *config.Config) storage.RunMetadata {
	limiter := cfg.Limiter.Type
	if limiter == "" {
		limiter = "none"
	}
	return storage.RunMetadata{
		Name:       name,
		Seed:       cfg.Seed,
		Rate:       cfg.Rate,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Limiter:    limiter,
		Modules:    cfg.ModuleNames(),
	}
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %-16s %.6f\n", name, m[name])
	}
}

func runTrials(ctx context.Context, name string, cfg *config.Config) error {
	if cfg.Noise == 0 {
		logger.Warn("trials without measurement noise are identical", zap.String("config", name))
	}
	fmt.Printf("running %d trials of %s...\n", trials, name)
	results, err := experiment.RunTrials(ctx, name, cfg, trials, logger)
	if err != nil {
		return err
	}

	var names []string
	for metric := range results[0].Metrics {
		names = append(names, metric)
	}
	sort.Strings(names)

	fmt.Printf("\n%-16s %12s %12s %12s %12s\n", "metric", "mean", "std", "min", "max")
	for _, metric := range names {
		s := experiment.Summarize(results, metric)
		fmt.Printf("%-16s %12.6f %12.6f %12.6f %12.6f\n", metric, s.Mean, s.Std, s.Min, s.Max)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	name, cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	// The terminal belongs to the UI.
	exp, err := experiment.New(name, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	return viz.Run(exp)
}

func listPresets(cmd *cobra.Command, args []string) error {
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		fmt.Printf("  %-10s %d modules, %.1fs, limiter %s\n", name, len(cfg.Modules), cfg.Duration, cfg.Limiter.Type)
	}
	return nil
}
