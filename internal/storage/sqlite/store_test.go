package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/spken/ict-skills-2025/internal/fleet"
	"github.com/spken/ict-skills-2025/internal/storage"
	"github.com/spken/ict-skills-2025/pkg/records"
)

/*
Package-level test helpers (TB-aware)
*/

func newStore(tb testing.TB) *Store {
	tb.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		tb.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func countRows(tb testing.TB, s *Store, table string) int {
	tb.Helper()
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

func utc(y int, mo time.Month, d, h, mi, sec int) records.Value {
	return records.Time(time.Date(y, mo, d, h, mi, sec, 0, time.UTC))
}

func device(serial, name string) fleet.Device {
	return fleet.Device{
		SerialNumber: serial,
		Name:         records.Text(name),
		AddressLine:  records.Text("Seestrasse 1"),
		PostalCode:   records.Text("8002"),
		City:         records.Text("Zurich"),
		Canton:       records.Text("ZH"),
		Vendor:       records.Text("Husqvarna"),
		Model:        records.Text("450X"),
		Firmware:     records.Text("2.1.0"),
		PurchaseDate: utc(2023, 4, 1, 0, 0, 0),
	}
}

func fact(serial string, ts records.Value, battery, state records.Value) fleet.TrackingFact {
	return fleet.TrackingFact{
		SerialNumber: serial,
		Timestamp:    ts,
		Latitude:     records.Number(47.3769),
		Longitude:    records.Number(8.5417),
		BatteryLevel: battery,
		DeviceState:  state,
	}
}

/*
Unit tests
*/

func TestEnsureSchema_Idempotent(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

// One device, one fact with battery and state: one row in each of the three
// fact tables, linked to the persisted device id.
func TestLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	devices := []fleet.Device{device("SN1", "Alpha")}
	facts := []fleet.TrackingFact{
		fact("SN1", utc(2024, 1, 5, 9, 0, 0), records.Number(85), records.Text("mowing")),
	}

	stats, err := s.Load(ctx, devices, facts, storage.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.DevicesUpserted != 1 || stats.FactsInserted != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Positions != 1 || stats.Batteries != 1 || stats.States != 1 {
		t.Fatalf("fact rows = %+v; want 1/1/1", stats)
	}

	var gotTS string
	var gotBattery float64
	err = s.DB().QueryRow(`
		SELECT b.timestamp, b.battery_level
		FROM battery_levels b
		JOIN lawnmowers l ON l.id = b.lawnmower_id
		WHERE l.serial_number = 'SN1'`).Scan(&gotTS, &gotBattery)
	if err != nil {
		t.Fatalf("read battery row: %v", err)
	}
	if gotTS != "2024-01-05 09:00:00" || gotBattery != 85 {
		t.Fatalf("battery row = %s / %v", gotTS, gotBattery)
	}

	var tz string
	if err := s.DB().QueryRow(`SELECT timezone FROM lawnmowers WHERE serial_number = 'SN1'`).Scan(&tz); err != nil {
		t.Fatalf("read timezone: %v", err)
	}
	if tz != "UTC" {
		t.Fatalf("timezone = %q; want UTC", tz)
	}
}

// Null battery and state produce a position row only.
func TestLoad_OptionalFactRows(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	stats, err := s.Load(context.Background(),
		[]fleet.Device{device("SN1", "Alpha")},
		[]fleet.TrackingFact{fact("SN1", utc(2024, 1, 5, 9, 0, 0), records.Null(), records.Null())},
		storage.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.Positions != 1 || stats.Batteries != 0 || stats.States != 0 {
		t.Fatalf("stats = %+v; want position only", stats)
	}
	if n := countRows(t, s, "battery_levels"); n != 0 {
		t.Fatalf("battery rows = %d; want 0", n)
	}
	if n := countRows(t, s, "device_states"); n != 0 {
		t.Fatalf("state rows = %d; want 0", n)
	}
}

// Re-loading an existing serial updates only the mutable attributes; vendor,
// model, firmware and purchase date keep their first-load values.
func TestLoad_UpsertMutableFieldsOnly(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	first := device("SN1", "Alpha")
	if _, err := s.Load(ctx, []fleet.Device{first}, nil, storage.LoadOptions{}); err != nil {
		t.Fatalf("first Load: %v", err)
	}

	second := device("SN1", "Renamed")
	second.AddressLine = records.Text("Bahnhofstrasse 2")
	second.Vendor = records.Text("OtherVendor")
	second.Model = records.Text("OtherModel")
	second.Firmware = records.Text("9.9.9")
	second.PurchaseDate = utc(2030, 1, 1, 0, 0, 0)
	second.LatestMaintenance = utc(2024, 6, 1, 12, 0, 0)
	if _, err := s.Load(ctx, []fleet.Device{second}, nil, storage.LoadOptions{}); err != nil {
		t.Fatalf("second Load: %v", err)
	}

	if n := countRows(t, s, "lawnmowers"); n != 1 {
		t.Fatalf("lawnmowers = %d; want 1", n)
	}

	var name, address, vendor, model, firmware, purchase, maintenance string
	err := s.DB().QueryRow(`
		SELECT name, address, vendor, model, firmware_version,
		       COALESCE(purchase_date, ''), COALESCE(latest_maintenance, '')
		FROM lawnmowers WHERE serial_number = 'SN1'`).
		Scan(&name, &address, &vendor, &model, &firmware, &purchase, &maintenance)
	if err != nil {
		t.Fatalf("read device: %v", err)
	}

	if name != "Renamed" || address != "Bahnhofstrasse 2" || maintenance != "2024-06-01 12:00:00" {
		t.Fatalf("mutable fields not updated: name=%q address=%q maintenance=%q", name, address, maintenance)
	}
	if vendor != "Husqvarna" || model != "450X" || firmware != "2.1.0" || purchase != "2023-04-01 00:00:00" {
		t.Fatalf("immutable fields changed: vendor=%q model=%q firmware=%q purchase=%q",
			vendor, model, firmware, purchase)
	}
}

// A failure on a later fact leaves no rows at all: the battery CHECK
// constraint fires on the second fact and the whole load rolls back,
// including the first fact and every device.
func TestLoad_AtomicRollback(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	facts := []fleet.TrackingFact{
		fact("SN1", utc(2024, 1, 5, 9, 0, 0), records.Number(50), records.Null()),
		fact("SN1", utc(2024, 1, 5, 9, 10, 0), records.Number(200), records.Null()), // violates CHECK
	}
	_, err := s.Load(context.Background(), []fleet.Device{device("SN1", "Alpha")}, facts, storage.LoadOptions{})
	if err == nil {
		t.Fatal("Load must fail on the constraint violation")
	}

	for _, table := range []string{"lawnmowers", "gps_positions", "battery_levels", "device_states"} {
		if n := countRows(t, s, table); n != 0 {
			t.Fatalf("%s has %d rows after rollback; want 0", table, n)
		}
	}
}

// Facts whose serial has no persisted device are skipped, not failed.
func TestLoad_SkipsUnresolvedSerial(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	facts := []fleet.TrackingFact{
		fact("SN1", utc(2024, 1, 5, 9, 0, 0), records.Null(), records.Null()),
		fact("GHOST", utc(2024, 1, 5, 9, 0, 0), records.Null(), records.Null()),
	}
	stats, err := s.Load(context.Background(), []fleet.Device{device("SN1", "Alpha")}, facts, storage.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.FactsInserted != 1 || stats.FactsSkipped != 1 {
		t.Fatalf("stats = %+v; want 1 inserted, 1 skipped", stats)
	}
	if n := countRows(t, s, "gps_positions"); n != 1 {
		t.Fatalf("positions = %d; want 1", n)
	}
}

// The serial lookup is built from the table, so a load against a database
// that already holds devices resolves facts for serials absent from this
// run's device set.
func TestLoad_LookupIncludesPreexistingDevices(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Load(ctx, []fleet.Device{device("OLD", "Veteran")}, nil, storage.LoadOptions{}); err != nil {
		t.Fatalf("seed Load: %v", err)
	}

	facts := []fleet.TrackingFact{fact("OLD", utc(2024, 2, 1, 8, 0, 0), records.Null(), records.Null())}
	stats, err := s.Load(ctx, []fleet.Device{device("SN1", "Alpha")}, facts, storage.LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.FactsInserted != 1 || stats.FactsSkipped != 0 {
		t.Fatalf("stats = %+v; want the pre-existing serial to resolve", stats)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("Open must reject an empty DSN")
	}
}
