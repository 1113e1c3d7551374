// Package postgres persists ingested measurements so the in-memory store can
// be rebuilt after a restart.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS measurements (
	seq           BIGINT PRIMARY KEY,
	id            TEXT NOT NULL,
	batch_id      TEXT NOT NULL,
	observed_at   TIMESTAMPTZ NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	gas           TEXT NOT NULL,
	value         DOUBLE PRECISION NOT NULL,
	unit          TEXT NOT NULL,
	source        TEXT NOT NULL,
	provider      TEXT NOT NULL DEFAULT '',
	location_name TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	category      SMALLINT NOT NULL,
	color         TEXT NOT NULL,
	ingested_at   TIMESTAMPTZ NOT NULL
)`

const insertMeasurement = `
INSERT INTO measurements (
	seq, id, batch_id, observed_at, lat, lon, gas, value, unit, source,
	provider, location_name, status, reason, category, color, ingested_at
) VALUES (
	:seq, :id, :batch_id, :observed_at, :lat, :lon, :gas, :value, :unit, :source,
	:provider, :location_name, :status, :reason, :category, :color, :ingested_at
) ON CONFLICT (seq) DO NOTHING`

const selectMeasurements = `
SELECT seq, id, batch_id, observed_at, lat, lon, gas, value, unit, source,
	provider, location_name, status, reason, category, color, ingested_at
FROM measurements
ORDER BY seq`

// insertChunk keeps each multi-row insert under the postgres bind
// parameter limit of 65535 (17 columns per row).
const insertChunk = 1000

// Store implements fusion.SnapshotStore on a measurements table.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, verifies the connection, and creates the schema if
// missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveMeasurements inserts ms in one transaction. Measurements already
// present (same seq) are left untouched.
func (s *Store) SaveMeasurements(ctx context.Context, ms []domain.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows := toRows(ms)
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err := tx.NamedExecContext(ctx, insertMeasurement, rows[start:end]); err != nil {
			return fmt.Errorf("insert measurements: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit measurements: %w", err)
	}
	return nil
}

// LoadMeasurements returns every stored measurement in ingestion order.
func (s *Store) LoadMeasurements(ctx context.Context) ([]domain.Measurement, error) {
	var rows []measurementRow
	if err := s.db.SelectContext(ctx, &rows, selectMeasurements); err != nil {
		return nil, fmt.Errorf("select measurements: %w", err)
	}
	ms := make([]domain.Measurement, len(rows))
	for i := range rows {
		ms[i] = rows[i].toDomain()
	}
	return ms, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type measurementRow struct {
	Seq          int64     `db:"seq"`
	ID           string    `db:"id"`
	BatchID      string    `db:"batch_id"`
	ObservedAt   time.Time `db:"observed_at"`
	Lat          float64   `db:"lat"`
	Lon          float64   `db:"lon"`
	Gas          string    `db:"gas"`
	Value        float64   `db:"value"`
	Unit         string    `db:"unit"`
	Source       string    `db:"source"`
	Provider     string    `db:"provider"`
	LocationName string    `db:"location_name"`
	Status       string    `db:"status"`
	Reason       string    `db:"reason"`
	Category     int       `db:"category"`
	Color        string    `db:"color"`
	IngestedAt   time.Time `db:"ingested_at"`
}

func toRows(ms []domain.Measurement) []measurementRow {
	rows := make([]measurementRow, len(ms))
	for i, m := range ms {
		rows[i] = measurementRow{
			Seq:          int64(m.Seq), //nolint:gosec // seq is a monotonic counter far below MaxInt64
			ID:           m.ID,
			BatchID:      m.BatchID,
			ObservedAt:   m.Timestamp.UTC(),
			Lat:          m.Geo.Lat,
			Lon:          m.Geo.Lon,
			Gas:          string(m.Gas),
			Value:        m.Value,
			Unit:         m.Unit,
			Source:       string(m.Source),
			Provider:     m.Provider,
			LocationName: m.LocationName,
			Status:       string(m.Status),
			Reason:       m.Reason,
			Category:     int(m.Category),
			Color:        string(m.Color),
			IngestedAt:   m.IngestedAt.UTC(),
		}
	}
	return rows
}

func (r measurementRow) toDomain() domain.Measurement {
	return domain.Measurement{
		ID:           r.ID,
		Seq:          uint64(r.Seq), //nolint:gosec // written from a uint64
		BatchID:      r.BatchID,
		Timestamp:    r.ObservedAt.UTC(),
		Geo:          domain.Geo{Lat: r.Lat, Lon: r.Lon},
		Gas:          domain.Gas(r.Gas),
		Value:        r.Value,
		Unit:         r.Unit,
		Source:       domain.Source(r.Source),
		Provider:     r.Provider,
		LocationName: r.LocationName,
		Status:       domain.Status(r.Status),
		Reason:       r.Reason,
		Category:     domain.Category(r.Category),
		Color:        domain.Color(r.Color),
		IngestedAt:   r.IngestedAt.UTC(),
	}
}
