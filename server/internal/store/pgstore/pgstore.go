package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/store"
)

// maxRecentAlerts caps RecentAlerts when the caller asks for no limit.
const maxRecentAlerts = 1000

// Store is a PostgreSQL-backed history store and alert sink.
type Store struct {
	db *sqlx.DB
}

var (
	_ store.HistoryStore = (*Store)(nil)
	_ store.AlertSink    = (*Store)(nil)
)

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Connect opens and pings a PostgreSQL database.
func Connect(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	return New(db), nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) AppendReadings(ctx context.Context, readings []types.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	const q = `INSERT INTO sensor_readings (station_id, parameter, value, ts)
		VALUES (:station_id, :parameter, :value, :ts)`
	if _, err := s.db.NamedExecContext(ctx, q, readings); err != nil {
		return fmt.Errorf("pgstore: append readings: %w", err)
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, e types.HistoryEntry) error {
	readings, err := json.Marshal(e.Values)
	if err != nil {
		return fmt.Errorf("pgstore: encode history values: %w", err)
	}
	const q = `INSERT INTO station_history (station_id, day, ts, readings, score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (station_id, ts) DO UPDATE SET readings = EXCLUDED.readings, score = EXCLUDED.score`
	if _, err := s.db.ExecContext(ctx, q, e.StationID, e.Day, e.Timestamp, readings, e.Score); err != nil {
		return fmt.Errorf("pgstore: append history: %w", err)
	}
	return nil
}

func (s *Store) AppendScoreLog(ctx context.Context, l types.ScoreLog) error {
	breakdown, err := json.Marshal(l.Breakdown)
	if err != nil {
		return fmt.Errorf("pgstore: encode breakdown: %w", err)
	}
	raw, err := json.Marshal(l.Raw)
	if err != nil {
		return fmt.Errorf("pgstore: encode raw values: %w", err)
	}
	const q = `INSERT INTO wqi_logs (id, station_id, owner_id, wqi, status, breakdown, raw_values, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = s.db.ExecContext(ctx, q,
		l.ID, l.StationID, l.OwnerID, l.Index, l.Status, breakdown, raw, l.Timestamp)
	if err != nil {
		return fmt.Errorf("pgstore: append score log: %w", err)
	}
	return nil
}

func (s *Store) AppendAlert(ctx context.Context, a types.AlertEvent) error {
	const q = `INSERT INTO alerts (
			id, station_id, owner_id, category, severity, parameter, value,
			message, reason, status, origin, created_at
		) VALUES (
			:id, :station_id, :owner_id, :category, :severity, :parameter, :value,
			:message, :reason, :status, :origin, :created_at
		)`
	if _, err := s.db.NamedExecContext(ctx, q, a); err != nil {
		return fmt.Errorf("pgstore: append alert: %w", err)
	}
	return nil
}

func (s *Store) RecentAlerts(ctx context.Context, stationID string, since time.Time, limit int) ([]types.AlertEvent, error) {
	if limit <= 0 || limit > maxRecentAlerts {
		limit = maxRecentAlerts
	}
	const q = `SELECT id, station_id, owner_id, category, severity, parameter, value,
			message, reason, status, origin, created_at
		FROM alerts
		WHERE ($1 = '' OR station_id = $1) AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`
	out := []types.AlertEvent{}
	if err := s.db.SelectContext(ctx, &out, q, stationID, since, limit); err != nil {
		return nil, fmt.Errorf("pgstore: recent alerts: %w", err)
	}
	return out, nil
}
