// Package api implements the HTTP REST API for buoywatch-server.
//
// New(deps) returns an http.Handler that serves:
//
//	POST /api/v1/ingest                 submit a reading; returns the score and alerts
//	GET  /api/v1/health                 station counts by connectivity state
//	GET  /api/v1/stations               all registered stations with their live index
//	GET  /api/v1/stations/{id}          status, current values, score, recent alerts
//	GET  /api/v1/alerts?station=&limit= alert log, newest first
//
// Responses are JSON. Unsupported methods return 405; a rejected submission
// returns 400.
package api
