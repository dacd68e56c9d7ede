// Package mysql implements the FleetStore against MySQL/MariaDB using
// database/sql and go-sql-driver/mysql. Device upserts use
// INSERT ... ON DUPLICATE KEY UPDATE keyed by the serial_number unique index.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/spken/ict-skills-2025/internal/fleet"
	"github.com/spken/ict-skills-2025/internal/storage"
)

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.FleetStore, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Store is a MySQL-backed FleetStore.
type Store struct {
	db *sql.DB
}

// Open connects and pings. DSN format is the go-sql-driver one, e.g.
// "user:pass@tcp(localhost:3306)/lawnmower_management?parseTime=false".
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS lawnmowers (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255),
		address VARCHAR(255),
		postal_code VARCHAR(16),
		city VARCHAR(128),
		canton VARCHAR(64),
		home_latitude DOUBLE,
		home_longitude DOUBLE,
		serial_number VARCHAR(64) NOT NULL,
		vendor VARCHAR(128),
		model VARCHAR(128),
		firmware_version VARCHAR(64),
		purchase_date DATETIME NULL,
		latest_maintenance DATETIME NULL,
		port_number INT,
		timezone VARCHAR(32) NOT NULL DEFAULT 'UTC',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_lawnmowers_serial (serial_number)
	)`,
	`CREATE TABLE IF NOT EXISTS gps_positions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		lawnmower_id INT NOT NULL,
		timestamp DATETIME NOT NULL,
		latitude DOUBLE,
		longitude DOUBLE,
		CONSTRAINT fk_gps_lawnmower FOREIGN KEY (lawnmower_id) REFERENCES lawnmowers (id)
	)`,
	`CREATE TABLE IF NOT EXISTS battery_levels (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		lawnmower_id INT NOT NULL,
		timestamp DATETIME NOT NULL,
		battery_level DOUBLE,
		CONSTRAINT fk_battery_lawnmower FOREIGN KEY (lawnmower_id) REFERENCES lawnmowers (id),
		CONSTRAINT ck_battery_range CHECK (battery_level BETWEEN 0 AND 100)
	)`,
	`CREATE TABLE IF NOT EXISTS device_states (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		lawnmower_id INT NOT NULL,
		timestamp DATETIME NOT NULL,
		state VARCHAR(64),
		CONSTRAINT fk_state_lawnmower FOREIGN KEY (lawnmower_id) REFERENCES lawnmowers (id)
	)`,
}

// EnsureSchema creates the four target tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("mysql: create table: %w", err)
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
	ON DUPLICATE KEY UPDATE
		name = VALUES(name),
		address = VALUES(address),
		latest_maintenance = VALUES(latest_maintenance),
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
		return stats, fmt.Errorf("mysql: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, d := range devices {
		if _, err := tx.ExecContext(ctx, upsertDevice, storage.DeviceArgs(d)...); err != nil {
			return stats, fmt.Errorf("mysql: upsert lawnmower %s: %w", d.SerialNumber, err)
		}
		stats.DevicesUpserted++
	}

	ids, err := deviceIDs(ctx, tx)
	if err != nil {
		return stats, err
	}

	posStmt, err := tx.PrepareContext(ctx, insertPosition)
	if err != nil {
		return stats, fmt.Errorf("mysql: prepare position insert: %w", err)
	}
	defer posStmt.Close()
	batStmt, err := tx.PrepareContext(ctx, insertBattery)
	if err != nil {
		return stats, fmt.Errorf("mysql: prepare battery insert: %w", err)
	}
	defer batStmt.Close()
	stateStmt, err := tx.PrepareContext(ctx, insertState)
	if err != nil {
		return stats, fmt.Errorf("mysql: prepare state insert: %w", err)
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
			return stats, fmt.Errorf("mysql: insert position for %s: %w", f.SerialNumber, err)
		}
		stats.Positions++
		if !f.BatteryLevel.IsNull() {
			if _, err := batStmt.ExecContext(ctx, id, ts, f.BatteryLevel.Arg()); err != nil {
				return stats, fmt.Errorf("mysql: insert battery level for %s: %w", f.SerialNumber, err)
			}
			stats.Batteries++
		}
		if !f.DeviceState.IsNull() {
			if _, err := stateStmt.ExecContext(ctx, id, ts, f.DeviceState.Arg()); err != nil {
				return stats, fmt.Errorf("mysql: insert device state for %s: %w", f.SerialNumber, err)
			}
			stats.States++
		}
		stats.FactsInserted++
		tick()
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("mysql: commit: %w", err)
	}
	return stats, nil
}

// deviceIDs reads back all persisted devices inside the transaction. Upsert
// may have created ids that were unknown before this pass, so the lookup is
// built from the table, not from the input.
func deviceIDs(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, serial_number FROM lawnmowers`)
	if err != nil {
		return nil, fmt.Errorf("mysql: read lawnmower ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var serial string
		if err := rows.Scan(&id, &serial); err != nil {
			return nil, fmt.Errorf("mysql: scan lawnmower id: %w", err)
		}
		ids[serial] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: read lawnmower ids: %w", err)
	}
	return ids, nil
}
