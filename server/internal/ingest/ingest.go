package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/alerts"
	"github.com/buoywatch/buoywatch/server/internal/compute"
	"github.com/buoywatch/buoywatch/server/internal/settings"
	"github.com/buoywatch/buoywatch/server/internal/store"
)

// ErrInvalidReading is returned (wrapped) when a submission is rejected
// before any write.
var ErrInvalidReading = errors.New("ingest: invalid reading")

// ownerKey is the optional payload field naming the owning user.
const ownerKey = "uid"

// RulesProvider supplies the current scoring weights.
type RulesProvider interface {
	Rules(ctx context.Context) settings.Rules
}

// Observer receives every completed ingest, e.g. for metrics.
type Observer interface {
	ObserveIngest(stationID string, score compute.Result)
}

// Result is the outcome of one ingest call.
type Result struct {
	StationID string             `json:"station_id"`
	Timestamp time.Time          `json:"timestamp"`
	Score     compute.Result     `json:"score"`
	Alerts    []types.AlertEvent `json:"alerts"`
}

// Deps are the collaborators an Orchestrator writes to.
type Deps struct {
	History  store.HistoryStore
	State    store.StateStore
	Registry store.Registry
	Alerts   *alerts.Recorder
	Rules    RulesProvider

	// Location determines the calendar day used to key history entries.
	// Defaults to UTC.
	Location *time.Location

	// Observer is optional.
	Observer Observer
}

// Orchestrator runs the ingest pipeline. It holds no per-station state and
// is safe for concurrent use.
type Orchestrator struct {
	deps  Deps
	now   func() time.Time // injectable for deterministic tests
	newID func() string
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Orchestrator{deps: deps, now: time.Now, newID: uuid.NewString}
}

// Ingest scores a submission and records its side effects. raw is the
// decoded sensor object; non-numeric and unknown entries are ignored.
// A zero eventTime means "now".
func (o *Orchestrator) Ingest(ctx context.Context, stationID string, raw map[string]any, eventTime time.Time) (*Result, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil, fmt.Errorf("%w: missing station id", ErrInvalidReading)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: missing sensors object", ErrInvalidReading)
	}

	ts := eventTime
	if ts.IsZero() {
		ts = o.now()
	}
	ts = ts.UTC()

	values := types.ParseValues(raw)
	present := values.Present()
	log := slog.With("station", stationID)

	if len(present) > 0 {
		if err := o.deps.State.UpdateCurrent(ctx, stationID, values, ts); err != nil {
			log.Warn("ingest: update current failed", "err", err)
		}
		if err := o.deps.State.TouchLastSeen(ctx, stationID, present, ts); err != nil {
			log.Warn("ingest: touch last seen failed", "err", err)
		}
		if err := o.deps.History.AppendReadings(ctx, readings(stationID, values, present, ts)); err != nil {
			log.Warn("ingest: append readings failed", "err", err)
		}
	}

	rules := o.deps.Rules.Rules(ctx)
	score := compute.Score(values, rules.Weights)
	owner := o.resolveOwner(ctx, stationID, raw)

	if err := o.deps.History.AppendScoreLog(ctx, types.ScoreLog{
		ID:        o.newID(),
		StationID: stationID,
		OwnerID:   owner,
		Index:     score.Index,
		Status:    score.Status,
		Breakdown: score.SubScores,
		Raw:       values,
		Timestamp: ts,
	}); err != nil {
		log.Warn("ingest: append score log failed", "err", err)
	}

	if err := o.deps.History.AppendHistory(ctx, types.HistoryEntry{
		StationID: stationID,
		Day:       ts.In(o.deps.Location).Format("2006-01-02"),
		Timestamp: ts,
		Values:    values,
		Score:     score.Index,
	}); err != nil {
		log.Warn("ingest: append history failed", "err", err)
	}

	res := &Result{
		StationID: stationID,
		Timestamp: ts,
		Score:     score,
		Alerts:    make([]types.AlertEvent, 0),
	}
	for _, p := range present {
		v := values[p]
		verdict := compute.Classify(p, v)
		if !verdict.Alerting() {
			continue
		}
		recorded, err := o.deps.Alerts.Record(ctx, alerts.SensorAlert(stationID, owner, p, v, verdict))
		if err != nil {
			log.Warn("ingest: record alert failed", "parameter", p, "err", err)
		}
		res.Alerts = append(res.Alerts, recorded)
	}

	if o.deps.Observer != nil {
		o.deps.Observer.ObserveIngest(stationID, score)
	}

	log.Debug("ingest: processed",
		"params", len(present),
		"index", score.Index,
		"status", score.Status,
		"alerts", len(res.Alerts),
	)
	return res, nil
}

// resolveOwner prefers the payload's uid, then the registry owner.
func (o *Orchestrator) resolveOwner(ctx context.Context, stationID string, raw map[string]any) *string {
	if uid, ok := raw[ownerKey].(string); ok && strings.TrimSpace(uid) != "" {
		uid = strings.TrimSpace(uid)
		return &uid
	}
	owner, err := o.deps.Registry.Owner(ctx, stationID)
	if err != nil {
		slog.Warn("ingest: owner lookup failed", "station", stationID, "err", err)
		return nil
	}
	if owner == "" {
		return nil
	}
	return &owner
}

func readings(stationID string, values types.Values, present []types.Parameter, ts time.Time) []types.Reading {
	out := make([]types.Reading, 0, len(present))
	for _, p := range present {
		v := values[p]
		out = append(out, types.Reading{StationID: stationID, Parameter: p, Value: &v, Timestamp: ts})
	}
	return out
}

// NormalizeTimestamp converts a device timestamp to a time. Values below
// 1e11 are taken as Unix seconds, larger ones as milliseconds. A
// non-positive value yields the zero time, which Ingest treats as "now".
func NormalizeTimestamp(n float64) time.Time {
	switch {
	case n <= 0:
		return time.Time{}
	case n < 1e11:
		return time.UnixMilli(int64(n * 1000)).UTC()
	default:
		return time.UnixMilli(int64(n)).UTC()
	}
}
