package swerve

import "math"

// FixedLimiter always returns Value.
type FixedLimiter struct {
	Value float64
}

func (f FixedLimiter) Scale([]float64) float64 { return clampScale(f.Value) }

// BudgetLimiter keeps the summed wheel effort magnitude within Budget.
// A non-positive budget never limits.
type BudgetLimiter struct {
	Budget float64
}

func (b BudgetLimiter) Scale(efforts []float64) float64 {
	if !(b.Budget > 0) {
		return 1
	}
	total := 0.0
	for _, e := range efforts {
		total += math.Abs(e)
	}
	if !(total > b.Budget) {
		return 1
	}
	return b.Budget / total
}

// LimiterFunc adapts a plain function to EffortLimiter.
type LimiterFunc func(efforts []float64) float64

func (f LimiterFunc) Scale(efforts []float64) float64 { return f(efforts) }

// clampScale maps any limiter output into [0, 1]; NaN means no drive.
func clampScale(s float64) float64 {
	switch {
	case math.IsNaN(s), s <= 0:
		return 0
	case s >= 1:
		return 1
	}
	return s
}
