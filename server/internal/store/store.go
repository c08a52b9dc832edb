package store

import (
	"context"
	"errors"
	"time"

	"github.com/buoywatch/buoywatch/pkg/types"
)

// ErrNotFound is returned when a station or record does not exist.
var ErrNotFound = errors.New("store: not found")

// Current is the latest-value projection for one station.
type Current struct {
	Values    types.Values `json:"values"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HistoryStore is the append-only measurement history.
type HistoryStore interface {
	// AppendReadings writes one timeseries row per reading.
	AppendReadings(ctx context.Context, readings []types.Reading) error

	// AppendHistory writes a composite snapshot keyed by station, local day
	// and timestamp.
	AppendHistory(ctx context.Context, entry types.HistoryEntry) error

	// AppendScoreLog records one scoring outcome.
	AppendScoreLog(ctx context.Context, log types.ScoreLog) error
}

// AlertSink is the append-only alert log.
type AlertSink interface {
	AppendAlert(ctx context.Context, a types.AlertEvent) error

	// RecentAlerts returns alerts created at or after since, newest first.
	// An empty stationID matches every station. limit <= 0 means no limit.
	RecentAlerts(ctx context.Context, stationID string, since time.Time, limit int) ([]types.AlertEvent, error)
}

// Registry is the read side of the station registry plus the status mirror.
type Registry interface {
	ListStations(ctx context.Context) ([]string, error)
	StationSettings(ctx context.Context, stationID string) (types.StationSettings, error)

	// Owner returns the owning user id, or "" when the station has none.
	Owner(ctx context.Context, stationID string) (string, error)

	// SetStationState mirrors the scheduler's overall state onto the
	// registry record.
	SetStationState(ctx context.Context, stationID string, state types.State, at time.Time) error
}

// StateStore holds the live per-station state.
type StateStore interface {
	// UpdateCurrent merges values into the station's projection.
	// Last write wins; an older reading arriving late overwrites a newer one.
	UpdateCurrent(ctx context.Context, stationID string, values types.Values, at time.Time) error
	Current(ctx context.Context, stationID string) (Current, error)

	// TouchLastSeen stamps at as the last-seen time for each parameter.
	TouchLastSeen(ctx context.Context, stationID string, params []types.Parameter, at time.Time) error
	LastSeen(ctx context.Context, stationID string) (map[types.Parameter]time.Time, error)

	// Status returns ErrNotFound when the station was never evaluated.
	Status(ctx context.Context, stationID string) (types.StatusSnapshot, error)
	PutStatus(ctx context.Context, snap types.StatusSnapshot) error
}
