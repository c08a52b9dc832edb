// Package ingest processes one reading submission from a station.
//
// Ingest validates the payload, then performs a sequence of independent,
// best-effort writes: the latest-value projection and last-seen stamps, one
// timeseries row per present parameter, the score log, the day-keyed
// history entry and one sensor alert per parameter breaching its threshold.
// A failed write is logged and the remaining writes still run; only input
// validation is reported to the caller as an error.
package ingest
