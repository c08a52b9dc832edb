package alerts

import (
	"fmt"
	"strings"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/compute"
)

// SensorAlert builds the alert for one alerting classifier verdict.
func SensorAlert(stationID string, owner *string, p types.Parameter, value float64, v compute.Verdict) types.AlertEvent {
	param, val, reason := p, value, v.Reason
	return types.AlertEvent{
		StationID: stationID,
		OwnerID:   owner,
		Category:  types.CategorySensor,
		Severity:  v.Severity,
		Parameter: &param,
		Value:     &val,
		Message:   v.Message(p),
		Reason:    &reason,
		Origin:    types.OriginIngest,
	}
}

// StationOffline is raised when a station transitions to offline.
func StationOffline(stationID string, owner *string, missing []types.Parameter) types.AlertEvent {
	return statusAlert(stationID, owner, types.SeverityCritical,
		fmt.Sprintf("Buoy %s offline", stationID), missingReason(missing))
}

// StationStillOffline is the repeat reminder for a station that stayed
// offline past the cooldown.
func StationStillOffline(stationID string, owner *string, missing []types.Parameter) types.AlertEvent {
	return statusAlert(stationID, owner, types.SeverityWarning,
		fmt.Sprintf("Buoy %s still offline", stationID), missingReason(missing))
}

// StationOnline is raised when a station transitions to online.
func StationOnline(stationID string, owner *string) types.AlertEvent {
	return statusAlert(stationID, owner, types.SeverityInfo,
		fmt.Sprintf("Buoy %s online", stationID), nil)
}

func statusAlert(stationID string, owner *string, sev types.Severity, msg string, reason *string) types.AlertEvent {
	return types.AlertEvent{
		StationID: stationID,
		OwnerID:   owner,
		Category:  types.CategoryStatus,
		Severity:  sev,
		Message:   msg,
		Reason:    reason,
		Origin:    types.OriginScheduler,
	}
}

// missingReason lists the missing parameters, e.g. "ph, tds".
func missingReason(missing []types.Parameter) *string {
	parts := make([]string, len(missing))
	for i, p := range missing {
		parts[i] = string(p)
	}
	s := strings.Join(parts, ", ")
	return &s
}
