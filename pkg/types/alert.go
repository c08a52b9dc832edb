package types

import "time"

// Severity grades an alert.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category separates per-reading threshold alerts from connectivity alerts.
type Category string

const (
	CategorySensor Category = "sensor"
	CategoryStatus Category = "status"
)

// Origin names the component that raised an alert.
type Origin string

const (
	OriginIngest    Origin = "ingest"
	OriginScheduler Origin = "scheduler"
)

// AlertActive is the only status this service writes; acknowledgement is
// handled by downstream consumers.
const AlertActive = "active"

// AlertEvent is one append-only alert record.
type AlertEvent struct {
	ID        string     `json:"id" db:"id"`
	StationID string     `json:"station_id" db:"station_id"`
	OwnerID   *string    `json:"owner_id,omitempty" db:"owner_id"`
	Category  Category   `json:"category" db:"category"`
	Severity  Severity   `json:"severity" db:"severity"`
	Parameter *Parameter `json:"parameter,omitempty" db:"parameter"`
	Value     *float64   `json:"value,omitempty" db:"value"`
	Message   string     `json:"message" db:"message"`
	Reason    *string    `json:"reason,omitempty" db:"reason"`
	Status    string     `json:"status" db:"status"`
	Origin    Origin     `json:"origin" db:"origin"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
