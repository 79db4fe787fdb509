// Package analysis characterizes recorded actuator traces: step response
// figures for tuning and the dominant frequency of residual oscillation.
package analysis
