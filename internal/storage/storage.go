// Package storage contains the storage-agnostic contracts of the loader:
// the FleetStore interface, the backend factory registry, and the shared
// argument/ progress helpers used by every dialect.
package storage

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/spken/ict-skills-2025/internal/fleet"
)

// Config selects and configures a backend.
type Config struct {
	// Kind names the registered backend ("mysql", "postgres", "sqlite", "mssql").
	Kind string

	// DSN is the driver-specific connection string.
	DSN string

	// AutoCreateTables runs EnsureSchema before loading.
	AutoCreateTables bool
}

// LoadOptions carries knobs that affect reporting, not load semantics.
type LoadOptions struct {
	// ProgressEvery emits a progress log line after this many tracking facts.
	// Zero selects DefaultProgressEvery.
	ProgressEvery int
}

// DefaultProgressEvery mirrors the historical behavior of reporting every
// 100 tracking records.
const DefaultProgressEvery = 100

// LoadStats summarizes one committed load.
type LoadStats struct {
	DevicesUpserted int64
	FactsInserted   int64
	FactsSkipped    int64 // facts whose serial had no persisted device
	Positions       int64
	Batteries       int64
	States          int64
}

// FleetStore persists one import batch. Load is all-or-nothing: it runs a
// single transaction and either every row becomes visible or none do.
type FleetStore interface {
	// EnsureSchema creates the target tables when they do not exist.
	EnsureSchema(ctx context.Context) error

	// Load upserts the device set, builds the serial-to-id lookup from the
	// persisted devices, and inserts the dependent fact rows, all inside one
	// transaction. A device-level failure or any fact insert failure rolls
	// the whole transaction back. Facts referencing an unknown serial are
	// skipped and counted, not failed.
	Load(ctx context.Context, devices []fleet.Device, facts []fleet.TrackingFact, opts LoadOptions) (LoadStats, error)

	// Close releases the underlying connection resources.
	Close() error
}

// Factory opens a FleetStore for a Config.
type Factory func(ctx context.Context, cfg Config) (FleetStore, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) a backend factory for the given storage
// kind. It is typically called from backend packages' init() functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (FleetStore, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Progress returns a per-fact counter that logs every 'every' facts. All
// backends share it so the progress format is identical across dialects.
func Progress(every int) func() {
	if every <= 0 {
		every = DefaultProgressEvery
	}
	n := 0
	return func() {
		n++
		if n%every == 0 {
			log.Printf("processed %d tracking records...", n)
		}
	}
}

// Device column order shared by every backend's INSERT.
//
// The timezone column is the fixed constant "UTC": all persisted timestamps
// are converted before load, and downstream consumers read them as UTC.
var DeviceColumns = []string{
	"name", "address", "postal_code", "city", "canton",
	"home_latitude", "home_longitude", "serial_number",
	"vendor", "model", "firmware_version", "purchase_date",
	"latest_maintenance", "port_number", "timezone",
}

// DeviceArgs flattens a device into driver arguments aligned to DeviceColumns.
func DeviceArgs(d fleet.Device) []any {
	return []any{
		d.Name.Arg(),
		d.AddressLine.Arg(),
		d.PostalCode.Arg(),
		d.City.Arg(),
		d.Canton.Arg(),
		d.HomeLatitude.Arg(),
		d.HomeLongitude.Arg(),
		d.SerialNumber,
		d.Vendor.Arg(),
		d.Model.Arg(),
		d.Firmware.Arg(),
		d.PurchaseDate.Arg(),
		d.LatestMaintenance.Arg(),
		d.PortNumber.Arg(),
		"UTC",
	}
}
