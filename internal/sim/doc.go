// Package sim runs a swerve controller in closed loop against simulated
// actuators.
//
// The Plant integrates first order rotary dynamics for every pivot and wheel.
// A Bank adapts the plant state to swerve.Actuator so the controller under
// test is exactly the one used on hardware, and ChassisController turns the
// controller into the per-tick Controller the Simulator expects.
package sim
