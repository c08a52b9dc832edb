package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buoywatch/buoywatch/pkg/types"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, New(sqlx.NewDb(db, "postgres"))
}

var at = time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

func TestAppendReadings_Batch(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectExec(`INSERT INTO sensor_readings`).
		WithArgs("b1", "ph", 7.1, at, "b1", "tds", 420.0, at).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := s.AppendReadings(context.Background(), []types.Reading{
		{StationID: "b1", Parameter: types.PH, Value: f64(7.1), Timestamp: at},
		{StationID: "b1", Parameter: types.TDS, Value: f64(420), Timestamp: at},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendReadings_EmptyIsNoOp(t *testing.T) {
	mock, s := setupMockDB(t)
	require.NoError(t, s.AppendReadings(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendHistory(t *testing.T) {
	mock, s := setupMockDB(t)

	mock.ExpectExec(`INSERT INTO station_history`).
		WithArgs("b1", "2024-06-01", at, []byte(`{"ph":7.1}`), 90.25).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.AppendHistory(context.Background(), types.HistoryEntry{
		StationID: "b1",
		Day:       "2024-06-01",
		Timestamp: at,
		Values:    types.Values{types.PH: 7.1},
		Score:     90.25,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendScoreLog(t *testing.T) {
	mock, s := setupMockDB(t)
	id := uuid.NewString()
	owner := "uid-7"

	mock.ExpectExec(`INSERT INTO wqi_logs`).
		WithArgs(id, "b1", &owner, 0.0, "Critical", sqlmock.AnyArg(), sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ph := 25
	err := s.AppendScoreLog(context.Background(), types.ScoreLog{
		ID:        id,
		StationID: "b1",
		OwnerID:   &owner,
		Index:     0,
		Status:    "Critical",
		Breakdown: map[types.Parameter]*int{types.PH: &ph, types.TDS: nil},
		Raw:       types.Values{types.PH: 5.5},
		Timestamp: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAlert(t *testing.T) {
	mock, s := setupMockDB(t)
	id := uuid.NewString()
	p := types.Turbidity
	reason := "turbidity abnormally high"

	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(id, "b1", nil, "sensor", "critical", "turbidity", 150.0,
			"TURBIDITY abnormal at critical level", reason, "active", "ingest", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.AppendAlert(context.Background(), types.AlertEvent{
		ID:        id,
		StationID: "b1",
		Category:  types.CategorySensor,
		Severity:  types.SeverityCritical,
		Parameter: &p,
		Value:     f64(150),
		Message:   "TURBIDITY abnormal at critical level",
		Reason:    &reason,
		Status:    types.AlertActive,
		Origin:    types.OriginIngest,
		CreatedAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendAlert_DatabaseError(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectExec(`INSERT INTO alerts`).WillReturnError(errors.New("connection reset"))

	err := s.AppendAlert(context.Background(), types.AlertEvent{ID: uuid.NewString(), StationID: "b1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pgstore: append alert")
}

func TestRecentAlerts(t *testing.T) {
	mock, s := setupMockDB(t)
	since := at.Add(-24 * time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "station_id", "owner_id", "category", "severity", "parameter", "value",
		"message", "reason", "status", "origin", "created_at",
	}).
		AddRow("a2", "b1", "uid-1", "status", "critical", nil, nil,
			"Buoy b1 went offline", "ph", "active", "scheduler", at).
		AddRow("a1", "b1", nil, "sensor", "warning", "ph", 6.2,
			"PH abnormal at warning level", "pH at warning level", "active", "ingest", at.Add(-time.Hour))

	mock.ExpectQuery(`SELECT (.+) FROM alerts`).
		WithArgs("b1", since, 5).
		WillReturnRows(rows)

	got, err := s.RecentAlerts(context.Background(), "b1", since, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a2", got[0].ID)
	assert.Equal(t, types.CategoryStatus, got[0].Category)
	assert.Nil(t, got[0].Parameter)
	require.NotNil(t, got[0].OwnerID)
	assert.Equal(t, "uid-1", *got[0].OwnerID)

	require.NotNil(t, got[1].Parameter)
	assert.Equal(t, types.PH, *got[1].Parameter)
	require.NotNil(t, got[1].Value)
	assert.Equal(t, 6.2, *got[1].Value)
	assert.Nil(t, got[1].OwnerID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentAlerts_NoLimitIsCapped(t *testing.T) {
	mock, s := setupMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM alerts`).
		WithArgs("", sqlmock.AnyArg(), maxRecentAlerts).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := s.RecentAlerts(context.Background(), "", time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}
