package status

import (
	"time"

	"github.com/buoywatch/buoywatch/pkg/types"
)

// Emit names the status alert a transition calls for.
type Emit int

const (
	EmitNone Emit = iota
	EmitOffline
	EmitStillOffline
	EmitOnline
)

// Decision is the outcome of Transition.
type Decision struct {
	Emit Emit

	// LastMissingAlert is the stamp to store in the new snapshot.
	LastMissingAlert *time.Time
}

// Severity is the alert severity for d.Emit, or SeverityNone.
func (d Decision) Severity() types.Severity {
	switch d.Emit {
	case EmitOffline:
		return types.SeverityCritical
	case EmitStillOffline:
		return types.SeverityWarning
	case EmitOnline:
		return types.SeverityInfo
	}
	return types.SeverityNone
}

// Transition decides the alert for a station moving from prev to computed.
//
//	same, offline, cooldown elapsed (or never alerted)  warning, stamp now
//	same, offline, within cooldown                      nothing, keep stamp
//	same, online                                        nothing, keep stamp
//	changed to offline                                  critical, stamp now
//	changed to online                                   info, clear stamp
//
// A previous state of StateUnknown always counts as a change.
func Transition(prev, computed types.State, lastAlert *time.Time, now time.Time, cooldown time.Duration) Decision {
	if prev == computed {
		if computed == types.StateOffline && (lastAlert == nil || now.Sub(*lastAlert) >= cooldown) {
			return Decision{Emit: EmitStillOffline, LastMissingAlert: &now}
		}
		return Decision{Emit: EmitNone, LastMissingAlert: lastAlert}
	}
	if computed == types.StateOffline {
		return Decision{Emit: EmitOffline, LastMissingAlert: &now}
	}
	return Decision{Emit: EmitOnline}
}
