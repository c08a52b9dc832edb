package api

import (
	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/compute"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status          string `json:"status"`
	StationCount    int    `json:"station_count"`
	OnlineCount     int    `json:"online_count"`
	OfflineCount    int    `json:"offline_count"`
	UnknownCount    int    `json:"unknown_count"`
	SchedulerPaused bool   `json:"scheduler_paused"`
}

// StationSummary is one entry in GET /api/v1/stations.
type StationSummary struct {
	StationID   string      `json:"station_id"`
	OwnerID     string      `json:"owner_id,omitempty"`
	State       types.State `json:"state"`
	Index       *float64    `json:"index,omitempty"`
	Status      string      `json:"status,omitempty"`       // Good, Warning or Critical
	UpdatedAt   string      `json:"updated_at,omitempty"`   // RFC3339, last reading
	LastChecked string      `json:"last_checked,omitempty"` // RFC3339, last status cycle
}

// StationReport is the payload for GET /api/v1/stations/{id}.
type StationReport struct {
	StationSummary
	Sensors      map[types.Parameter]types.Tier `json:"sensors"`
	Missing      []types.Parameter              `json:"missing"`
	Values       types.Values                   `json:"values"`
	Score        *compute.Result                `json:"score,omitempty"`
	Settings     SettingsResponse               `json:"settings"`
	RecentAlerts []types.AlertEvent             `json:"recent_alerts"`
}

// SettingsResponse is the effective status configuration of one station.
type SettingsResponse struct {
	ExpectedParams       []types.Parameter `json:"expected_params"`
	OfflineAfterMinutes  float64           `json:"offline_after_minutes"`
	MissingRepeatMinutes float64           `json:"missing_repeat_minutes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SnapshotResponse is the full station dump pushed to WebSocket clients.
type SnapshotResponse struct {
	Stations    []StationSummary `json:"stations"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}
