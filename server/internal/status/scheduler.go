package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/alerts"
	"github.com/buoywatch/buoywatch/server/internal/settings"
	"github.com/buoywatch/buoywatch/server/internal/store"
)

// DefaultInterval is the cycle cadence when none is configured.
const DefaultInterval = 10 * time.Minute

// RulesProvider supplies the pause flag, offline window and cooldown.
type RulesProvider interface {
	Rules(ctx context.Context) settings.Rules
}

// Observer receives per-station snapshots and cycle summaries.
type Observer interface {
	ObserveStation(snap types.StatusSnapshot)
	ObserveCycle(res CycleResult)
}

// CycleResult summarises one RunCycle call.
type CycleResult struct {
	StationsProcessed int       `json:"stations_processed"`
	StationsFailed    int       `json:"stations_failed"`
	AlertsEmitted     int       `json:"alerts_emitted"`
	Skipped           bool      `json:"skipped"`
	At                time.Time `json:"at"`
}

// Scheduler runs status cycles over every registered station.
type Scheduler struct {
	registry store.Registry
	state    store.StateStore
	alerts   *alerts.Recorder
	rules    RulesProvider
	interval time.Duration
	observer Observer
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Scheduler. A non-positive interval uses DefaultInterval.
func New(registry store.Registry, state store.StateStore, rec *alerts.Recorder, rules RulesProvider, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		registry: registry,
		state:    state,
		alerts:   rec,
		rules:    rules,
		interval: interval,
		now:      time.Now,
	}
}

// SetObserver attaches an optional observer.
func (s *Scheduler) SetObserver(o Observer) { s.observer = o }

// Run triggers RunCycle every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	slog.Info("status: scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle evaluates every registered station once. Stations are processed
// sequentially; a failing station is logged and skipped. When the rules say
// paused, nothing is read or written.
func (s *Scheduler) RunCycle(ctx context.Context) CycleResult {
	now := s.now().UTC()
	res := CycleResult{At: now}
	rules := s.rules.Rules(ctx)

	if rules.Paused {
		slog.Info("status: cycle skipped, scheduler paused")
		res.Skipped = true
		s.observeCycle(res)
		return res
	}

	ids, err := s.registry.ListStations(ctx)
	if err != nil {
		slog.Error("status: list stations failed", "err", err)
		s.observeCycle(res)
		return res
	}

	for _, id := range ids {
		emitted, err := s.processStation(ctx, id, rules, now)
		if err != nil {
			slog.Error("status: station failed", "station", id, "err", err)
			res.StationsFailed++
			continue
		}
		res.StationsProcessed++
		res.AlertsEmitted += emitted
	}

	slog.Info("status: cycle done",
		"stations", len(ids),
		"processed", res.StationsProcessed,
		"failed", res.StationsFailed,
		"alerts", res.AlertsEmitted,
		"offline_after", rules.OfflineAfter,
		"missing_repeat", rules.MissingRepeat,
	)
	s.observeCycle(res)
	return res
}

// processStation runs one station's unit of work and returns the number of
// alerts it emitted. A panic is reported as that station's error.
func (s *Scheduler) processStation(ctx context.Context, id string, rules settings.Rules, now time.Time) (emitted int, err error) {
	defer func() {
		if r := recover(); r != nil {
			emitted, err = 0, fmt.Errorf("panic: %v", r)
		}
	}()

	cfg, err := s.registry.StationSettings(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("read settings: %w", err)
	}
	lastSeen, err := s.state.LastSeen(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("read last seen: %w", err)
	}
	prev, err := s.state.Status(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		prev = types.StatusSnapshot{State: types.StateUnknown}
	case err != nil:
		return 0, fmt.Errorf("read previous status: %w", err)
	}

	window := rules.OfflineAfter
	if cfg.OfflineAfter > 0 {
		window = cfg.OfflineAfter
	}
	ev := Evaluate(cfg.Expected(), lastSeen, window, now)
	dec := Transition(prev.State, ev.State, prev.LastMissingAlert, now, rules.MissingRepeat)

	snap := types.StatusSnapshot{
		StationID:        id,
		State:            ev.State,
		Sensors:          ev.Sensors,
		Missing:          ev.Missing,
		LastChecked:      now,
		LastMissingAlert: dec.LastMissingAlert,
	}
	if err := s.state.PutStatus(ctx, snap); err != nil {
		return 0, fmt.Errorf("write status: %w", err)
	}

	if dec.Emit != EmitNone {
		a := s.alertFor(ctx, id, dec.Emit, ev.Missing)
		if _, err := s.alerts.Record(ctx, a); err != nil {
			slog.Warn("status: record alert failed", "station", id, "err", err)
		} else {
			emitted = 1
		}
	}

	if err := s.registry.SetStationState(ctx, id, ev.State, now); err != nil {
		slog.Warn("status: registry mirror failed", "station", id, "err", err)
	}
	if s.observer != nil {
		s.observer.ObserveStation(snap)
	}
	return emitted, nil
}

func (s *Scheduler) alertFor(ctx context.Context, id string, e Emit, missing []types.Parameter) types.AlertEvent {
	var owner *string
	if o, err := s.registry.Owner(ctx, id); err != nil {
		slog.Warn("status: owner lookup failed", "station", id, "err", err)
	} else if o != "" {
		owner = &o
	}
	switch e {
	case EmitOffline:
		return alerts.StationOffline(id, owner, missing)
	case EmitStillOffline:
		return alerts.StationStillOffline(id, owner, missing)
	default:
		return alerts.StationOnline(id, owner)
	}
}

func (s *Scheduler) observeCycle(res CycleResult) {
	if s.observer != nil {
		s.observer.ObserveCycle(res)
	}
}
