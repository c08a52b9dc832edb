package types

import "time"

// Reading is a single parameter observation as written to the timeseries.
// A nil Value means the station reported the key without usable data.
type Reading struct {
	StationID string    `json:"station_id" db:"station_id"`
	Parameter Parameter `json:"parameter" db:"parameter"`
	Value     *float64  `json:"value" db:"value"`
	Timestamp time.Time `json:"timestamp" db:"ts"`
}

// HistoryEntry is the composite per-submission record grouped by the
// station's local calendar day.
type HistoryEntry struct {
	StationID string    `json:"station_id"`
	Day       string    `json:"day"` // YYYY-MM-DD in the configured time zone
	Timestamp time.Time `json:"timestamp"`
	Values    Values    `json:"values"`
	Score     float64   `json:"score"`
}

// ScoreLog records one scoring outcome with its inputs.
type ScoreLog struct {
	ID        string             `json:"id"`
	StationID string             `json:"station_id"`
	OwnerID   *string            `json:"owner_id,omitempty"`
	Index     float64            `json:"index"`
	Status    string             `json:"status"`
	Breakdown map[Parameter]*int `json:"breakdown"`
	Raw       Values             `json:"raw"`
	Timestamp time.Time          `json:"timestamp"`
}
