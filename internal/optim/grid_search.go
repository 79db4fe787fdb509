package optim

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/swerve/internal/experiment"
)

var ErrNoCandidate = errors.New("optim: no parameter set could be evaluated")

// Builder creates the experiment for one parameter assignment.
type Builder func(params map[string]float64) (*experiment.Experiment, error)

// GridSearch evaluates every combination of parameter values and keeps the
// one minimizing a metric. Combinations are visited in a fixed order and
// the first of equal scores wins.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	logger     *zap.Logger
}

func NewGridSearch(params []string, ranges [][]float64, logger *zap.Logger) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, errors.Errorf("optim: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, errors.Errorf("optim: parameter %s has no values", params[i])
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridSearch{paramNames: params, ranges: ranges, logger: logger}, nil
}

// Size is the number of combinations Search evaluates.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search returns the best parameters and their score. Combinations whose
// experiment fails to build or run, or whose metric is NaN, are skipped;
// if none succeeds the collected errors are returned.
func (g *GridSearch) Search(ctx context.Context, build Builder, metricName string) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	var errs error

	idx := make([]int, len(g.paramNames))
	for {
		if err := ctx.Err(); err != nil {
			return bestParams, best, err
		}

		params := make(map[string]float64, len(idx))
		for i, j := range idx {
			params[g.paramNames[i]] = g.ranges[i][j]
		}

		val, err := g.evaluate(ctx, build, params, metricName)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return bestParams, best, ctx.Err()
			}
			errs = multierr.Append(errs, err)
			g.logger.Debug("candidate failed", zap.Any("params", params), zap.Error(err))
		case val < best:
			best = val
			bestParams = params
			g.logger.Info("new best", zap.Any("params", params), zap.Float64(metricName, val))
		}

		if !g.next(idx) {
			break
		}
	}

	if bestParams == nil {
		return nil, best, multierr.Append(ErrNoCandidate, errs)
	}
	return bestParams, best, nil
}

func (g *GridSearch) evaluate(ctx context.Context, build Builder, params map[string]float64, metricName string) (float64, error) {
	exp, err := build(params)
	if err != nil {
		return 0, err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	if len(result.Errors) > 0 {
		return 0, errors.Wrapf(result.Errors[0], "params %v", params)
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		return 0, errors.Errorf("metric %q not reported", metricName)
	}
	if math.IsNaN(val) {
		return 0, errors.Errorf("metric %q is NaN for %v", metricName, params)
	}
	return val, nil
}

// next advances idx like an odometer, last parameter fastest.
func (g *GridSearch) next(idx []int) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < len(g.ranges[i]) {
			return true
		}
		idx[i] = 0
	}
	return false
}

// ParseParam parses "name=v1,v2,..." or "name=min:max:n" into a parameter
// name and its candidate values.
func ParseParam(arg string) (string, []float64, error) {
	name, values, ok := strings.Cut(arg, "=")
	if !ok || name == "" || values == "" {
		return "", nil, errors.Errorf("optim: malformed parameter %q, want name=values", arg)
	}

	if parts := strings.Split(values, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err := multierr.Combine(err1, err2, err3); err != nil {
			return "", nil, errors.Wrapf(err, "optim: parameter %q", arg)
		}
		if n < 1 {
			return "", nil, errors.Errorf("optim: parameter %q needs at least one value", arg)
		}
		return name, Linspace(lo, hi, n), nil
	}

	var out []float64
	for _, f := range strings.Split(values, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, errors.Wrapf(err, "optim: parameter %q", arg)
		}
		out = append(out, v)
	}
	return name, out, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
