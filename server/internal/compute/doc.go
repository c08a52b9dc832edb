// Package compute turns raw water-quality readings into scores and alert
// verdicts.
//
// curves.go maps each parameter's value onto a 0–100 sub-score with a
// piecewise-linear curve: a flat or gently sloped good zone, a warning ramp
// ending at 50, and a critical ramp reaching 0 at a hard limit.
//
// score.go combines sub-scores into the water-quality index (WQI) using base
// weights, with the TDS/EC pool split between whichever of the two is present.
// Index > 70 is Good, 50–70 Warning, < 50 Critical. A pH or TDS sub-score
// below 50 forces the index to 0 and the status to Critical.
//
// classify.go holds the separate static threshold table used to raise sensor
// alerts for each reading. It is not derived from the curves.
//
// Everything here is pure: no I/O, no clocks, no package state.
package compute
