package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/san-kum/swerve/internal/experiment"
	"github.com/san-kum/swerve/internal/optim"
	"github.com/san-kum/swerve/internal/storage"
)

var (
	tuneParams []string
	tuneMetric string
	tuneSave   bool
)

func tuneGains(cmd *cobra.Command, args []string) error {
	name, base, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(tuneParams) == 0 {
		return fmt.Errorf("no --param given")
	}

	params := make([]string, 0, len(tuneParams))
	ranges := make([][]float64, 0, len(tuneParams))
	for _, arg := range tuneParams {
		p, values, err := optim.ParseParam(arg)
		if err != nil {
			return err
		}
		params = append(params, p)
		ranges = append(ranges, values)
	}

	gs, err := optim.NewGridSearch(params, ranges, logger)
	if err != nil {
		return err
	}

	build := func(values map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		for p, v := range values {
			if err := cfg.SetGain(p, v); err != nil {
				return nil, err
			}
		}
		return experiment.New(name, cfg, nil)
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("searching %d combinations for minimal %s...\n", gs.Size(), tuneMetric)
	best, score, err := gs.Search(ctx, build, tuneMetric)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\nbest %s: %.6f\n", tuneMetric, score)
	for _, k := range keys {
		fmt.Printf("  %-14s %g\n", k, best[k])
	}

	if !tuneSave {
		return nil
	}
	exp, err := build(best)
	if err != nil {
		return err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(runMetadata(name+"_tuned", exp.Config()), result)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}
