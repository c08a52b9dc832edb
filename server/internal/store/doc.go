// Package store defines the collaborator contracts the buoywatch core reads
// from and writes to, and provides an in-memory implementation of all of them.
//
// HistoryStore and AlertSink are append-only. Registry and StateStore hold
// the station list, per-station settings, the latest reading projection,
// per-parameter last-seen times and the status snapshot.
//
// Durable adapters live in the redisstore (registry and live state) and
// pgstore (history, score log, alerts) subpackages.
package store
