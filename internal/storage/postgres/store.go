// Package postgres implements the FleetStore on PostgreSQL using pgx v5.
// Device upserts use INSERT ... ON CONFLICT (serial_number) DO UPDATE.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spken/ict-skills-2025/internal/fleet"
	"github.com/spken/ict-skills-2025/internal/storage"
)

// init registers the "postgres" backend with the factory.
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.FleetStore, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Store is a Postgres-backed FleetStore.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates a pgx pool and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS lawnmowers (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name TEXT,
		address TEXT,
		postal_code TEXT,
		city TEXT,
		canton TEXT,
		home_latitude DOUBLE PRECISION,
		home_longitude DOUBLE PRECISION,
		serial_number TEXT NOT NULL UNIQUE,
		vendor TEXT,
		model TEXT,
		firmware_version TEXT,
		purchase_date TIMESTAMP,
		latest_maintenance TIMESTAMP,
		port_number INTEGER,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		updated_at TIMESTAMP NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS gps_positions (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		lawnmower_id BIGINT NOT NULL REFERENCES lawnmowers (id),
		"timestamp" TIMESTAMP NOT NULL,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS battery_levels (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		lawnmower_id BIGINT NOT NULL REFERENCES lawnmowers (id),
		"timestamp" TIMESTAMP NOT NULL,
		battery_level DOUBLE PRECISION CHECK (battery_level BETWEEN 0 AND 100)
	)`,
	`CREATE TABLE IF NOT EXISTS device_states (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		lawnmower_id BIGINT NOT NULL REFERENCES lawnmowers (id),
		"timestamp" TIMESTAMP NOT NULL,
		state TEXT
	)`,
}

// EnsureSchema creates the four target tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: create table: %w", err)
		}
	}
	return nil
}

const upsertDevice = `INSERT INTO lawnmowers (
		name, address, postal_code, city, canton,
		home_latitude, home_longitude, serial_number,
		vendor, model, firmware_version, purchase_date,
		latest_maintenance, port_number, timezone
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (serial_number) DO UPDATE SET
		name = EXCLUDED.name,
		address = EXCLUDED.address,
		latest_maintenance = EXCLUDED.latest_maintenance,
		updated_at = now()`

const (
	insertPosition = `INSERT INTO gps_positions (lawnmower_id, "timestamp", latitude, longitude) VALUES ($1, $2, $3, $4)`
	insertBattery  = `INSERT INTO battery_levels (lawnmower_id, "timestamp", battery_level) VALUES ($1, $2, $3)`
	insertState    = `INSERT INTO device_states (lawnmower_id, "timestamp", state) VALUES ($1, $2, $3)`
)

// Load implements the two-phase transactional load: device upserts, then the
// serial lookup, then the dependent fact rows. Any failure rolls back the
// whole transaction.
//
// Fact rows go through pgx batches: statements are queued and flushed per
// chunk, which cuts round trips without touching atomicity (the batch runs
// inside the same transaction).
func (s *Store) Load(ctx context.Context, devices []fleet.Device, facts []fleet.TrackingFact, opts storage.LoadOptions) (storage.LoadStats, error) {
	var stats storage.LoadStats

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range devices {
		if _, err := tx.Exec(ctx, upsertDevice, storage.DeviceArgs(d)...); err != nil {
			return stats, fmt.Errorf("postgres: upsert lawnmower %s: %w", d.SerialNumber, err)
		}
		stats.DevicesUpserted++
	}

	ids, err := deviceIDs(ctx, tx)
	if err != nil {
		return stats, err
	}

	tick := storage.Progress(opts.ProgressEvery)
	batch := &pgx.Batch{}
	serials := make([]string, 0, factBatchSize)

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		br := tx.SendBatch(ctx, batch)
		for _, serial := range serials {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("postgres: insert fact row for %s: %w", serial, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: flush fact batch: %w", err)
		}
		batch = &pgx.Batch{}
		serials = serials[:0]
		return nil
	}

	for _, f := range facts {
		id, ok := ids[f.SerialNumber]
		if !ok {
			stats.FactsSkipped++
			continue
		}
		ts := f.Timestamp.Arg()
		batch.Queue(insertPosition, id, ts, f.Latitude.Arg(), f.Longitude.Arg())
		serials = append(serials, f.SerialNumber)
		stats.Positions++
		if !f.BatteryLevel.IsNull() {
			batch.Queue(insertBattery, id, ts, f.BatteryLevel.Arg())
			serials = append(serials, f.SerialNumber)
			stats.Batteries++
		}
		if !f.DeviceState.IsNull() {
			batch.Queue(insertState, id, ts, f.DeviceState.Arg())
			serials = append(serials, f.SerialNumber)
			stats.States++
		}
		stats.FactsInserted++
		tick()
		if batch.Len() >= factBatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("postgres: commit: %w", err)
	}
	return stats, nil
}

// factBatchSize bounds how many queued statements travel per round trip.
const factBatchSize = 500

// deviceIDs reads back all persisted devices inside the transaction. Upsert
// may have created ids that were unknown before this pass, so the lookup is
// built from the table, not from the input.
func deviceIDs(ctx context.Context, tx pgx.Tx) (map[string]int64, error) {
	rows, err := tx.Query(ctx, `SELECT id, serial_number FROM lawnmowers`)
	if err != nil {
		return nil, fmt.Errorf("postgres: read lawnmower ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var serial string
		if err := rows.Scan(&id, &serial); err != nil {
			return nil, fmt.Errorf("postgres: scan lawnmower id: %w", err)
		}
		ids[serial] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read lawnmower ids: %w", err)
	}
	return ids, nil
}
