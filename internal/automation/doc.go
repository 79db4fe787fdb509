// Package automation scripts twist commands for simulated and real runs.
//
// A Profile is a list of timed segments. Each segment either steps to its
// twist or ramps linearly from the previous one, and the command is zero
// once the profile ends.
package automation
