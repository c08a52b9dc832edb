// Package alerts builds and records alert events.
//
// Sensor alerts come from the per-reading threshold classifier during ingest.
// Status alerts come from the status scheduler when a station changes
// connectivity or stays offline past the repeat cooldown. Both are stamped
// with an id and creation time, appended to the configured store.AlertSink
// and kept in a short in-memory history for the API and live stream.
//
// Delivery to people (push, chat, e-mail) is handled downstream of the sink.
package alerts
