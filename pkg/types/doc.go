// Package types holds the domain types shared by every buoywatch component:
// the closed set of water-quality parameters, parsed reading values, alert
// events and per-station status snapshots.
package types
