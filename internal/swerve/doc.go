// Package swerve turns a chassis twist into per-module actuator commands for
// an N-module swerve drivetrain.
//
// One call to [Controller.Update] is one control tick:
//
//   - every [Module] composes its ground velocity from the twist and its
//     mounting position, then picks the steering delta that needs the least
//     pivot travel, driving the wheel in reverse when the module points the
//     opposite way ([Geometry.Solve]);
//   - each module's pivot and wheel PID loops turn the steering and wheel
//     speed errors into efforts;
//   - the chassis [EffortLimiter] returns a scale in [0, 1] that is applied to
//     every wheel effort. Pivot efforts are always issued unscaled.
//
// # Actuators
//
// Modules talk to hardware only through [Actuator]. The simulator in
// internal/sim and the CAN bus adapter in internal/canio both satisfy it.
//
// # Thread Safety
//
// A Controller is NOT thread-safe. Update is meant to be called from a single
// control thread at a fixed rate; it performs no allocation and no I/O of its
// own.
package swerve
