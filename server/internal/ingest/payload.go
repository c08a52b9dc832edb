package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Payload is the wire form of a submission, shared by the HTTP and MQTT
// transports.
//
//	{"buoy_id": "buoy_001", "device_time_ms": 1717221600000,
//	 "sensors": {"ph": 7.1, "tds": 420, "uid": "owner-1"}}
type Payload struct {
	StationID  string         `json:"buoy_id"`
	Sensors    map[string]any `json:"sensors"`
	DeviceTime any            `json:"device_time_ms,omitempty"`
}

// EventTime returns the normalised device time, or zero when it is absent or
// unreadable. Numbers and numeric strings go through NormalizeTimestamp;
// other strings are parsed as RFC 3339.
func (p Payload) EventTime() time.Time {
	switch v := p.DeviceTime.(type) {
	case json.Number:
		return normalizeNumeric(string(v))
	case float64:
		return NormalizeTimestamp(v)
	case string:
		s := strings.TrimSpace(v)
		if t := normalizeNumeric(s); !t.IsZero() {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func normalizeNumeric(s string) time.Time {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}
	}
	return NormalizeTimestamp(n)
}

// DecodePayload parses a JSON submission. Numbers in the sensors object are
// kept as json.Number so large integers survive intact. A syntactically
// invalid body is reported as ErrInvalidReading.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	return p, nil
}

// Submit decodes data and ingests it. stationID, when non-empty, overrides
// the payload's buoy_id (the MQTT topic carries the station id).
func (o *Orchestrator) Submit(ctx context.Context, stationID string, data []byte) (*Result, error) {
	p, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	if stationID == "" {
		stationID = p.StationID
	}
	return o.Ingest(ctx, stationID, p.Sensors, p.EventTime())
}
