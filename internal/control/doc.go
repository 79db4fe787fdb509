// Package control provides the feedback primitive used by every swerve module.
//
// [PID] is a discrete proportional-integral-derivative loop driven by an
// error sample and the time since the previous sample:
//
//	pid := control.NewPID(control.Gains{P: 8, I: 0.5, D: 0.2})
//	effort := pid.Update(err, 0.002) // seconds
//
// Each module owns two instances (steering and wheel speed). State persists
// across updates until [PID.Reset].
//
// Gains may be adjusted between updates through [PID.SetParam], which is how
// the grid search and the live view tune a running chassis.
package control
