package swerve

// Actuator is the narrow view of one joint that a module needs.
//
// Position is the continuous joint angle in radians (not wrapped), Velocity
// the joint rate in rad/s. SetCommand writes the effort for the current tick;
// it must not block.
type Actuator interface {
	Position() float64
	Velocity() float64
	SetCommand(effort float64)
}

// EffortLimiter returns the chassis-wide scale applied to the wheel efforts
// of one tick. Implementations must not retain efforts.
type EffortLimiter interface {
	Scale(efforts []float64) float64
}
