package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/buoywatch/buoywatch/pkg/types"
)

// Station is a registry record held by Memory.
type Station struct {
	ID       string
	OwnerID  string
	Settings types.StationSettings
	State    types.State
	StateAt  time.Time
}

// Memory is a thread-safe in-memory implementation of HistoryStore,
// AlertSink, Registry and StateStore. Append-only records older than the
// retention window are evicted by Run.
type Memory struct {
	mu        sync.RWMutex
	stations  map[string]*Station
	current   map[string]Current
	lastSeen  map[string]map[types.Parameter]time.Time
	status    map[string]types.StatusSnapshot
	readings  []types.Reading
	history   []types.HistoryEntry
	scoreLogs []types.ScoreLog
	alerts    []types.AlertEvent

	retention time.Duration
	now       func() time.Time // injectable for deterministic tests
}

var (
	_ HistoryStore = (*Memory)(nil)
	_ AlertSink    = (*Memory)(nil)
	_ Registry     = (*Memory)(nil)
	_ StateStore   = (*Memory)(nil)
)

// NewMemory creates an empty Memory. retention <= 0 keeps records forever.
func NewMemory(retention time.Duration) *Memory {
	return &Memory{
		stations:  make(map[string]*Station),
		current:   make(map[string]Current),
		lastSeen:  make(map[string]map[types.Parameter]time.Time),
		status:    make(map[string]types.StatusSnapshot),
		retention: retention,
		now:       time.Now,
	}
}

// RegisterStation adds or replaces a registry record.
func (m *Memory) RegisterStation(id, owner string, settings types.StationSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &Station{ID: id, OwnerID: owner, Settings: settings}
	if prev, ok := m.stations[id]; ok {
		st.State, st.StateAt = prev.State, prev.StateAt
	}
	m.stations[id] = st
}

// Station returns a copy of the registry record for id.
func (m *Memory) Station(id string) (Station, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stations[id]
	if !ok {
		return Station{}, false
	}
	return *st, true
}

// --- Registry ---------------------------------------------------------------

func (m *Memory) ListStations(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.stations))
	for id := range m.stations {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) StationSettings(_ context.Context, id string) (types.StationSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stations[id]
	if !ok {
		return types.StationSettings{}, ErrNotFound
	}
	return st.Settings, nil
}

func (m *Memory) Owner(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.stations[id]; ok {
		return st.OwnerID, nil
	}
	return "", nil
}

func (m *Memory) SetStationState(_ context.Context, id string, state types.State, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stations[id]
	if !ok {
		return ErrNotFound
	}
	st.State, st.StateAt = state, at
	return nil
}

// --- StateStore -------------------------------------------------------------

func (m *Memory) UpdateCurrent(_ context.Context, id string, values types.Values, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.current[id]
	merged := make(types.Values, len(cur.Values)+len(values))
	for p, v := range cur.Values {
		merged[p] = v
	}
	for p, v := range values {
		merged[p] = v
	}
	m.current[id] = Current{Values: merged, UpdatedAt: at}
	return nil
}

func (m *Memory) Current(_ context.Context, id string) (Current, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.current[id]
	if !ok {
		return Current{}, ErrNotFound
	}
	return cur, nil
}

func (m *Memory) TouchLastSeen(_ context.Context, id string, params []types.Parameter, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen, ok := m.lastSeen[id]
	if !ok {
		seen = make(map[types.Parameter]time.Time, len(params))
		m.lastSeen[id] = seen
	}
	for _, p := range params {
		seen[p] = at
	}
	return nil
}

func (m *Memory) LastSeen(_ context.Context, id string) (map[types.Parameter]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[types.Parameter]time.Time, len(m.lastSeen[id]))
	for p, t := range m.lastSeen[id] {
		out[p] = t
	}
	return out, nil
}

func (m *Memory) Status(_ context.Context, id string) (types.StatusSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.status[id]
	if !ok {
		return types.StatusSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *Memory) PutStatus(_ context.Context, snap types.StatusSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[snap.StationID] = snap
	return nil
}

// --- HistoryStore -----------------------------------------------------------

func (m *Memory) AppendReadings(_ context.Context, readings []types.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, readings...)
	return nil
}

func (m *Memory) AppendHistory(_ context.Context, e types.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	return nil
}

func (m *Memory) AppendScoreLog(_ context.Context, l types.ScoreLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreLogs = append(m.scoreLogs, l)
	return nil
}

// Readings returns the timeseries rows for a station in insertion order.
func (m *Memory) Readings(id string) []types.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Reading
	for _, r := range m.readings {
		if r.StationID == id {
			out = append(out, r)
		}
	}
	return out
}

// History returns the composite history entries for a station and local day.
func (m *Memory) History(id, day string) []types.HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.HistoryEntry
	for _, e := range m.history {
		if e.StationID == id && e.Day == day {
			out = append(out, e)
		}
	}
	return out
}

// ScoreLogs returns the score log for a station in insertion order.
func (m *Memory) ScoreLogs(id string) []types.ScoreLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.ScoreLog
	for _, l := range m.scoreLogs {
		if l.StationID == id {
			out = append(out, l)
		}
	}
	return out
}

// --- AlertSink --------------------------------------------------------------

func (m *Memory) AppendAlert(_ context.Context, a types.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *Memory) RecentAlerts(_ context.Context, id string, since time.Time, limit int) ([]types.AlertEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.AlertEvent, 0)
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if id != "" && a.StationID != id {
			continue
		}
		if a.CreatedAt.Before(since) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- retention --------------------------------------------------------------

// Evict drops readings, history and score logs older than now minus the
// retention window and returns how many were removed. Live state and alerts
// are never evicted.
func (m *Memory) Evict(now time.Time) int {
	if m.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0

	readings := m.readings[:0]
	for _, r := range m.readings {
		if r.Timestamp.After(cutoff) {
			readings = append(readings, r)
		} else {
			removed++
		}
	}
	m.readings = readings

	history := m.history[:0]
	for _, e := range m.history {
		if e.Timestamp.After(cutoff) {
			history = append(history, e)
		} else {
			removed++
		}
	}
	m.history = history

	logs := m.scoreLogs[:0]
	for _, l := range m.scoreLogs {
		if l.Timestamp.After(cutoff) {
			logs = append(logs, l)
		} else {
			removed++
		}
	}
	m.scoreLogs = logs

	return removed
}

// Run starts the background retention loop. It ticks hourly, or at half the
// retention window when that is shorter (minimum 1 second). Run blocks until
// ctx is cancelled.
func (m *Memory) Run(ctx context.Context) {
	if m.retention <= 0 {
		<-ctx.Done()
		return
	}
	interval := m.retention / 2
	if interval > time.Hour {
		interval = time.Hour
	}
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Evict(m.now()); n > 0 {
				slog.Debug("store: evicted expired records", "count", n)
			}
		}
	}
}
