// Package ws implements the WebSocket hub for buoywatch-server.
//
// Hub.Run(ctx) broadcasts the station snapshot every interval and closes all
// connections when ctx is cancelled. Hub.PublishAlert pushes each recorded
// alert immediately, to every subscriber or, for connections opened with
// ?station=<id>, only that station's alerts. Hub.ServeHTTP upgrades the
// connection and sends the current snapshot on connect.
//
// Messages:
//
//	{"event": "snapshot", "data": {"stations": [...], "generated_at": "..."}}
//	{"event": "alert",    "data": { /* AlertEvent */ }}
//
// The upgrader accepts all origins. The hub is mounted at /ws/stream.
package ws
