// Package redisstore implements store.Registry, store.StateStore and
// settings.Source on Redis.
//
// Key layout, relative to the configured prefix:
//
//	stations             SET   registered station ids
//	station:{id}         HASH  owner, expected_params, offline_after_minutes, state, state_at
//	current:{id}         HASH  parameter -> latest value, plus updated_at (unix ms)
//	lastseen:{id}        HASH  parameter -> unix ms
//	status:{id}          STRING JSON StatusSnapshot
//	settings:rules       STRING JSON settings.Document
package redisstore
