package status

import (
	"time"

	"github.com/buoywatch/buoywatch/pkg/types"
)

// TierFor grades a report age against the offline-after window d.
func TierFor(age, d time.Duration) types.Tier {
	switch {
	case age <= d:
		return types.TierOnline
	case age <= 2*d:
		return types.TierDelayed
	default:
		return types.TierOffline
	}
}

// Evaluation is the freshness verdict for one station.
type Evaluation struct {
	Sensors map[types.Parameter]types.Tier
	Missing []types.Parameter
	State   types.State
}

// Evaluate grades every expected parameter. A parameter with no last-seen
// time is offline. Missing lists non-online parameters in expected order.
func Evaluate(expected []types.Parameter, lastSeen map[types.Parameter]time.Time, d time.Duration, now time.Time) Evaluation {
	ev := Evaluation{
		Sensors: make(map[types.Parameter]types.Tier, len(expected)),
		Missing: make([]types.Parameter, 0),
		State:   types.StateOnline,
	}
	for _, p := range expected {
		tier := types.TierOffline
		if seen, ok := lastSeen[p]; ok {
			tier = TierFor(now.Sub(seen), d)
		}
		ev.Sensors[p] = tier
		if tier != types.TierOnline {
			ev.Missing = append(ev.Missing, p)
		}
	}
	if len(ev.Missing) > 0 {
		ev.State = types.StateOffline
	}
	return ev
}
