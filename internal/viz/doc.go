// Package viz is a live terminal view of a simulated swerve chassis.
//
// The chassis is drawn top down on a Braille [Canvas]: every module is a
// short arrow from its mounting point along the measured pivot angle, scaled
// by wheel speed, with a dot at the target heading. The side panel shows the
// commanded twist, the chassis effort scale and per-module errors, and
// charts the steering error with asciigraph.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset to the initial state
//	M     - Toggle manual driving (arrows: vx/vy, A/D: omega, S: stop)
//	Tab   - Select module
//	G     - Select gain, [ ] to tune it on every module
//	+/-   - Simulation speed
//	T     - Cycle color themes
//	P     - Save an SVG snapshot of the chassis
//	?     - Show help overlay
package viz
