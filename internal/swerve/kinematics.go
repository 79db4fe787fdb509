package swerve

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/s1"
)

// DefaultDeadband is the ground speed (m/s) at or below which a module holds
// its previous heading instead of steering toward an undefined direction.
const DefaultDeadband = 1e-4

// Twist is a planar rigid-body velocity in the chassis body frame.
type Twist struct {
	Vx    float64 // m/s, forward
	Vy    float64 // m/s, left
	Omega float64 // rad/s, counter-clockwise
}

// IsZero reports whether every component is exactly zero.
func (t Twist) IsZero() bool {
	return t.Vx == 0 && t.Vy == 0 && t.Omega == 0
}

// Geometry is the immutable mounting description of a module.
type Geometry struct {
	Position    r2.Point // pivot offset from the rotation center, m
	WheelRadius float64  // m
	PivotOffset float64  // rad, added to every computed heading
}

// Target is the outcome of the kinematics step for one module and one tick.
type Target struct {
	// Angle is the absolute pivot angle the module steers to.
	Angle float64
	// PivotError is the signed rotation from the measured angle to Angle.
	PivotError float64
	// WheelSpeed is the signed wheel angular velocity, rad/s.
	WheelSpeed float64
	// Flipped is set when the module reaches the heading by pointing the
	// opposite way and reversing the wheel.
	Flipped bool
	// Held is set when the ground speed was too small to define a heading.
	Held bool
}

// ShortestAngularDistance returns the signed rotation in (-π, π] that brings
// from onto to.
func ShortestAngularDistance(from, to float64) float64 {
	return s1.Angle(to - from).Normalized().Radians()
}

// GroundVelocity composes the velocity of the module pivot point:
// the chassis translation plus ω times the position rotated by 90°.
func (g Geometry) GroundVelocity(tw Twist) r2.Point {
	return r2.Point{X: tw.Vx, Y: tw.Vy}.Add(g.Position.Ortho().Mul(tw.Omega))
}

// Solve computes the steering and wheel targets of the module for twist tw
// given the measured pivot angle current.
//
// When the ground speed is not above deadband (or not finite) the heading is
// undefined: the module keeps steering to hold and the wheel target is zero.
// Otherwise the pivot error is the shorter of the two rotations to the ideal
// heading and to its opposite; the opposite is taken only when strictly
// shorter. The wheel target is scaled by the cosine of the remaining heading
// error, so it changes sign when the module points backwards and fades while
// the pivot is still catching up.
func (g Geometry) Solve(tw Twist, current, hold, deadband float64) Target {
	v := g.GroundVelocity(tw)
	speed := v.Norm()
	if !(speed > deadband) || math.IsInf(speed, 0) {
		return Target{
			Angle:      hold,
			PivotError: ShortestAngularDistance(current, hold),
			Held:       true,
		}
	}

	heading := math.Atan2(v.Y, v.X) + g.PivotOffset
	direct := ShortestAngularDistance(current, heading)
	reverse := ShortestAngularDistance(current, heading+math.Pi)

	t := Target{
		PivotError: direct,
		WheelSpeed: speed / g.WheelRadius * math.Cos(direct),
	}
	if math.Abs(reverse) < math.Abs(direct) {
		t.PivotError = reverse
		t.Flipped = true
	}
	t.Angle = current + t.PivotError
	return t
}
