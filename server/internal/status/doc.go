// Package status reconciles station connectivity on a fixed cadence.
//
// Each cycle, every registered station's expected parameters are graded by
// the age of their last report against the offline-after window D:
// age ≤ D online, D < age ≤ 2D delayed, beyond 2D (or never seen) offline.
// Any parameter that is not online is missing, and a station with a missing
// parameter is offline overall.
//
// Transition compares the previous and new overall state and decides which
// status alert, if any, to raise. Scheduler.RunCycle applies it per station,
// isolating failures so one broken station never blocks the rest.
package status
