// Package sqlite implements the FleetStore on SQLite via database/sql and the
// CGO-free modernc.org driver. It doubles as the backend the storage tests run
// against (":memory:" databases need no external service).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3

	"github.com/spken/ict-skills-2025/internal/fleet"
	"github.com/spken/ict-skills-2025/internal/storage"
)

// init registers the "sqlite" backend with the factory.
func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.FleetStore, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Store is a SQLite-backed FleetStore.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database. DSN is passed to database/sql directly, e.g.
// "fleet.db" or "file:fleet.db?cache=shared" or ":memory:".
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	// A :memory: database lives per connection; more than one connection in
	// the pool would each see their own empty schema.
	db.SetMaxOpenConns(1)
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for test assertions.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS lawnmowers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		address TEXT,
		postal_code TEXT,
		city TEXT,
		canton TEXT,
		home_latitude REAL,
		home_longitude REAL,
		serial_number TEXT NOT NULL UNIQUE,
		vendor TEXT,
		model TEXT,
		firmware_version TEXT,
		purchase_date TEXT,
		latest_maintenance TEXT,
		port_number INTEGER,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS gps_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lawnmower_id INTEGER NOT NULL REFERENCES lawnmowers (id),
		timestamp TEXT NOT NULL,
		latitude REAL,
		longitude REAL
	)`,
	`CREATE TABLE IF NOT EXISTS battery_levels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lawnmower_id INTEGER NOT NULL REFERENCES lawnmowers (id),
		timestamp TEXT NOT NULL,
		battery_level REAL CHECK (battery_level BETWEEN 0 AND 100)
	)`,
	`CREATE TABLE IF NOT EXISTS device_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		lawnmower_id INTEGER NOT NULL REFERENCES lawnmowers (id),
		timestamp TEXT NOT NULL,
		state TEXT
	)`,
}

// EnsureSchema creates the four target tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("sqlite: create table: %w", err)
		}
	}
	return nil
}

const upsertDevice = `INSERT INTO lawnmowers (
		name, address, postal_code, city, canton,
		home_latitude, home_longitude, serial_number,
		vendor, model, firmware_version, purchase_date,
		latest_maintenance, port_number, timezone
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (serial_number) DO UPDATE SET
		name = excluded.name,
		address = excluded.address,
		latest_maintenance = excluded.latest_maintenance,
		updated_at = CURRENT_TIMESTAMP`

const (
	insertPosition = `INSERT INTO gps_positions (lawnmower_id, timestamp, latitude, longitude) VALUES (?, ?, ?, ?)`
	insertBattery  = `INSERT INTO battery_levels (lawnmower_id, timestamp, battery_level) VALUES (?, ?, ?)`
	insertState    = `INSERT INTO device_states (lawnmower_id, timestamp, state) VALUES (?, ?, ?)`
)

// Load implements the two-phase transactional load: device upserts, then the
// serial lookup, then the dependent fact rows. Any failure rolls back the
// whole transaction.
func (s *Store) Load(ctx context.Context, devices []fleet.Device, facts []fleet.TrackingFact, opts storage.LoadOptions) (storage.LoadStats, error) {
	var stats storage.LoadStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, d := range devices {
		if _, err := tx.ExecContext(ctx, upsertDevice, storage.DeviceArgs(d)...); err != nil {
			return stats, fmt.Errorf("sqlite: upsert lawnmower %s: %w", d.SerialNumber, err)
		}
		stats.DevicesUpserted++
	}

	ids, err := deviceIDs(ctx, tx)
	if err != nil {
		return stats, err
	}

	posStmt, err := tx.PrepareContext(ctx, insertPosition)
	if err != nil {
		return stats, fmt.Errorf("sqlite: prepare position insert: %w", err)
	}
	defer posStmt.Close()
	batStmt, err := tx.PrepareContext(ctx, insertBattery)
	if err != nil {
		return stats, fmt.Errorf("sqlite: prepare battery insert: %w", err)
	}
	defer batStmt.Close()
	stateStmt, err := tx.PrepareContext(ctx, insertState)
	if err != nil {
		return stats, fmt.Errorf("sqlite: prepare state insert: %w", err)
	}
	defer stateStmt.Close()

	tick := storage.Progress(opts.ProgressEvery)
	for _, f := range facts {
		id, ok := ids[f.SerialNumber]
		if !ok {
			stats.FactsSkipped++
			continue
		}
		ts := f.Timestamp.Arg()
		if _, err := posStmt.ExecContext(ctx, id, ts, f.Latitude.Arg(), f.Longitude.Arg()); err != nil {
			return stats, fmt.Errorf("sqlite: insert position for %s: %w", f.SerialNumber, err)
		}
		stats.Positions++
		if !f.BatteryLevel.IsNull() {
			if _, err := batStmt.ExecContext(ctx, id, ts, f.BatteryLevel.Arg()); err != nil {
				return stats, fmt.Errorf("sqlite: insert battery level for %s: %w", f.SerialNumber, err)
			}
			stats.Batteries++
		}
		if !f.DeviceState.IsNull() {
			if _, err := stateStmt.ExecContext(ctx, id, ts, f.DeviceState.Arg()); err != nil {
				return stats, fmt.Errorf("sqlite: insert device state for %s: %w", f.SerialNumber, err)
			}
			stats.States++
		}
		stats.FactsInserted++
		tick()
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("sqlite: commit: %w", err)
	}
	return stats, nil
}

// deviceIDs reads back all persisted devices inside the transaction. Upsert
// may have created ids that were unknown before this pass, so the lookup is
// built from the table, not from the input.
func deviceIDs(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, serial_number FROM lawnmowers`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read lawnmower ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var serial string
		if err := rows.Scan(&id, &serial); err != nil {
			return nil, fmt.Errorf("sqlite: scan lawnmower id: %w", err)
		}
		ids[serial] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read lawnmower ids: %w", err)
	}
	return ids, nil
}
