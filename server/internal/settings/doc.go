// Package settings provides the runtime rule set used by ingest and the
// status scheduler: scoring weights, the scheduler pause flag, the default
// offline-after window and the missing-data alert cooldown.
//
// Rules come from a Source (the YAML config file or Redis). Provider caches
// the resolved rules for a short TTL and never fails: when the source is
// unavailable it serves the last good rules, or built-in defaults.
package settings
