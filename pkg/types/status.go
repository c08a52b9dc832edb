package types

import "time"

// State is the overall connectivity of a station.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
	// StateUnknown is the previous state of a station that has never been
	// evaluated.
	StateUnknown State = "unknown"
)

// Tier is the freshness of a single parameter's last report.
type Tier string

const (
	TierOnline  Tier = "online"
	TierDelayed Tier = "delayed"
	TierOffline Tier = "offline"
)

// StatusSnapshot is the latest reconciliation result for one station.
// It is overwritten on every scheduler cycle.
type StatusSnapshot struct {
	StationID        string             `json:"station_id"`
	State            State              `json:"state"`
	Sensors          map[Parameter]Tier `json:"sensors"`
	Missing          []Parameter        `json:"missing"`
	LastChecked      time.Time          `json:"last_checked"`
	LastMissingAlert *time.Time         `json:"last_missing_alert,omitempty"`
}

// StationSettings are the per-station overrides read from the registry.
// Zero values mean "use the global default".
type StationSettings struct {
	ExpectedParams []Parameter   `json:"expected_params,omitempty" yaml:"expected_params"`
	OfflineAfter   time.Duration `json:"offline_after,omitempty" yaml:"offline_after"`
}

// Expected returns the configured expected set, or every parameter when none
// is configured.
func (s StationSettings) Expected() []Parameter {
	if len(s.ExpectedParams) == 0 {
		out := make([]Parameter, len(Parameters))
		copy(out, Parameters)
		return out
	}
	return s.ExpectedParams
}
