package analysis

import "math"

// DefaultBand is the settling band as a fraction of the step size.
const DefaultBand = 0.02

// Response summarizes a signal moving from its first to its last value.
type Response struct {
	Initial float64
	Final   float64
	// Overshoot is the largest excursion past Final, as a fraction of the
	// step size.
	Overshoot float64
	// RiseTime is the time from 10% to 90% of the step, or NaN when the
	// signal never gets there.
	RiseTime float64
	// SettlingTime is the time after which the signal stays within the band
	// around Final.
	SettlingTime float64
}

// StepResponse measures values sampled at times. band is a fraction of the
// step size; zero means DefaultBand. A signal that does not move has a zero
// Response.
func StepResponse(times, values []float64, band float64) Response {
	n := len(values)
	if len(times) < n {
		n = len(times)
	}
	if n == 0 {
		return Response{}
	}
	if band <= 0 {
		band = DefaultBand
	}

	r := Response{Initial: values[0], Final: values[n-1]}
	span := r.Final - r.Initial
	if math.Abs(span) < 1e-12 {
		r.Final = r.Initial
		return r
	}
	dir := math.Copysign(1, span)

	t10, t90 := math.NaN(), math.NaN()
	peak := 0.0
	for i := 0; i < n; i++ {
		progress := (values[i] - r.Initial) / span
		if math.IsNaN(t10) && progress >= 0.1 {
			t10 = times[i]
		}
		if math.IsNaN(t90) && progress >= 0.9 {
			t90 = times[i]
		}
		if past := dir * (values[i] - r.Final); past > peak {
			peak = past
		}
	}
	r.RiseTime = t90 - t10
	r.Overshoot = peak / math.Abs(span)

	tol := band * math.Abs(span)
	r.SettlingTime = times[0]
	for i := n - 1; i >= 0; i-- {
		if math.Abs(values[i]-r.Final) > tol {
			if i+1 < n {
				r.SettlingTime = times[i+1]
			}
			break
		}
	}
	r.SettlingTime -= times[0]
	return r
}
