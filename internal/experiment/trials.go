package experiment

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/swerve/internal/config"
	"github.com/san-kum/swerve/internal/sim"
)

// Summary is the spread of one metric across trials.
type Summary struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
}

// RunTrials repeats the experiment n times concurrently with seeds
// cfg.Seed, cfg.Seed+1, ... so measurement noise differs between trials.
// Every trial owns its own controller and plant.
func RunTrials(ctx context.Context, name string, cfg *config.Config, n int, logger *zap.Logger) ([]*sim.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	first, err := New(name, cfg, logger)
	if err != nil {
		return nil, err
	}

	build := func(seed int64) (*sim.Simulator, sim.State, error) {
		trial := cfg.Clone()
		trial.Seed = seed
		e, err := New(name, trial, logger.With(zap.Int64("seed", seed)))
		if err != nil {
			return nil, nil, err
		}
		return e.simulator, e.InitialState(), nil
	}

	logger.Info("running trials", zap.String("name", name), zap.Int("trials", n))
	return sim.NewEnsemble(build, n, cfg.Seed).Run(ctx, first.SimConfig())
}

// Summarize reports the distribution of metric over results. Results
// without the metric are skipped.
func Summarize(results []*sim.Result, metric string) Summary {
	var values []float64
	for _, r := range results {
		if v, ok := r.Metrics[metric]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return Summary{}
	}

	s := Summary{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		s.Mean += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean /= float64(len(values))
	for _, v := range values {
		s.Std += (v - s.Mean) * (v - s.Mean)
	}
	s.Std = math.Sqrt(s.Std / float64(len(values)))
	return s
}
