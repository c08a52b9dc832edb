package status

import (
	"testing"
	"time"

	"github.com/buoywatch/buoywatch/pkg/types"
)

func TestTransition(t *testing.T) {
	cooldown := 6 * time.Hour
	recent := now.Add(-time.Hour)
	stale := now.Add(-7 * time.Hour)
	exact := now.Add(-cooldown)

	cases := []struct {
		name      string
		prev      types.State
		computed  types.State
		lastAlert *time.Time
		wantEmit  Emit
		wantSev   types.Severity
		wantStamp *time.Time
	}{
		{"online to offline", types.StateOnline, types.StateOffline, nil, EmitOffline, types.SeverityCritical, &now},
		{"offline to online clears stamp", types.StateOffline, types.StateOnline, &recent, EmitOnline, types.SeverityInfo, nil},
		{"still online", types.StateOnline, types.StateOnline, nil, EmitNone, types.SeverityNone, nil},
		{"still offline within cooldown", types.StateOffline, types.StateOffline, &recent, EmitNone, types.SeverityNone, &recent},
		{"still offline cooldown elapsed", types.StateOffline, types.StateOffline, &stale, EmitStillOffline, types.SeverityWarning, &now},
		{"still offline at cooldown", types.StateOffline, types.StateOffline, &exact, EmitStillOffline, types.SeverityWarning, &now},
		{"still offline never alerted", types.StateOffline, types.StateOffline, nil, EmitStillOffline, types.SeverityWarning, &now},
		{"unknown to online", types.StateUnknown, types.StateOnline, nil, EmitOnline, types.SeverityInfo, nil},
		{"unknown to offline", types.StateUnknown, types.StateOffline, nil, EmitOffline, types.SeverityCritical, &now},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Transition(tc.prev, tc.computed, tc.lastAlert, now, cooldown)
			if d.Emit != tc.wantEmit {
				t.Errorf("Emit = %v, want %v", d.Emit, tc.wantEmit)
			}
			if d.Severity() != tc.wantSev {
				t.Errorf("Severity = %q, want %q", d.Severity(), tc.wantSev)
			}
			switch {
			case tc.wantStamp == nil && d.LastMissingAlert != nil:
				t.Errorf("LastMissingAlert = %v, want nil", *d.LastMissingAlert)
			case tc.wantStamp != nil && d.LastMissingAlert == nil:
				t.Errorf("LastMissingAlert = nil, want %v", *tc.wantStamp)
			case tc.wantStamp != nil && !d.LastMissingAlert.Equal(*tc.wantStamp):
				t.Errorf("LastMissingAlert = %v, want %v", *d.LastMissingAlert, *tc.wantStamp)
			}
		})
	}
}
