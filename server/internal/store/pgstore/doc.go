// Package pgstore implements store.HistoryStore and store.AlertSink on
// PostgreSQL via sqlx and lib/pq.
//
// Tables are created out of band:
//
//	CREATE TABLE sensor_readings (
//	    station_id TEXT NOT NULL,
//	    parameter  TEXT NOT NULL,
//	    value      DOUBLE PRECISION,
//	    ts         TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE station_history (
//	    station_id TEXT NOT NULL,
//	    day        DATE NOT NULL,
//	    ts         TIMESTAMPTZ NOT NULL,
//	    readings   JSONB NOT NULL,
//	    score      DOUBLE PRECISION NOT NULL,
//	    PRIMARY KEY (station_id, ts)
//	);
//	CREATE TABLE wqi_logs (
//	    id         UUID PRIMARY KEY,
//	    station_id TEXT NOT NULL,
//	    owner_id   TEXT,
//	    wqi        DOUBLE PRECISION NOT NULL,
//	    status     TEXT NOT NULL,
//	    breakdown  JSONB NOT NULL,
//	    raw_values JSONB NOT NULL,
//	    ts         TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE alerts (
//	    id         UUID PRIMARY KEY,
//	    station_id TEXT NOT NULL,
//	    owner_id   TEXT,
//	    category   TEXT NOT NULL,
//	    severity   TEXT NOT NULL,
//	    parameter  TEXT,
//	    value      DOUBLE PRECISION,
//	    message    TEXT NOT NULL,
//	    reason     TEXT,
//	    status     TEXT NOT NULL,
//	    origin     TEXT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
package pgstore
