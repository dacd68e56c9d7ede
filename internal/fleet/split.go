package fleet

import (
	"github.com/zeebo/xxh3"

	"github.com/spken/ict-skills-2025/pkg/records"
)

// SplitStats summarizes what the splitter kept and dropped.
type SplitStats struct {
	Rows            int // input rows
	Devices         int // unique devices kept (first occurrence wins)
	DuplicateSerial int // rows whose serial was already seen
	MissingSerial   int // rows without a usable serial number
	Facts           int // tracking facts kept
	NoTimestamp     int // candidate facts dropped for a null timestamp
}

// Split partitions cleaned records into the deduplicated device set and the
// tracking fact set.
//
// Devices are keyed by serial number with keep-first semantics: the first row
// in file order supplies every static attribute, later duplicates contribute
// nothing. Rows without a serial produce neither a device nor a fact. Facts
// additionally require a parsed timestamp; a fact without one is meaningless
// and is dropped silently.
func Split(recs []records.Record) ([]Device, []TrackingFact, SplitStats) {
	stats := SplitStats{Rows: len(recs)}

	devices := make([]Device, 0, 16)
	facts := make([]TrackingFact, 0, len(recs))
	seen := make(map[uint64]struct{}, 16)

	for _, r := range recs {
		serial, ok := r.Get(ColSerialNumber).Text()
		if !ok || serial == "" {
			stats.MissingSerial++
			continue
		}

		key := xxh3.HashString(serial)
		if _, dup := seen[key]; dup {
			stats.DuplicateSerial++
		} else {
			seen[key] = struct{}{}
			devices = append(devices, Device{
				SerialNumber:      serial,
				Name:              r.Get(ColName),
				AddressLine:       r.Get(ColAddressLine),
				PostalCode:        r.Get(ColPostalCode),
				City:              r.Get(ColCity),
				Canton:            r.Get(ColCanton),
				HomeLatitude:      r.Get(ColHomeLatitude),
				HomeLongitude:     r.Get(ColHomeLongitude),
				Vendor:            r.Get(ColVendor),
				Model:             r.Get(ColModel),
				Firmware:          r.Get(ColFirmware),
				PurchaseDate:      r.Get(ColPurchaseDate),
				LatestMaintenance: r.Get(ColLatestMaintenance),
				PortNumber:        r.Get(ColPortNumber),
			})
		}

		ts := r.Get(ColTimestamp)
		if _, isTime := ts.Time(); !isTime {
			stats.NoTimestamp++
			continue
		}
		facts = append(facts, TrackingFact{
			SerialNumber: serial,
			Timestamp:    ts,
			Latitude:     r.Get(ColLatitude),
			Longitude:    r.Get(ColLongitude),
			DeviceState:  r.Get(ColDeviceState),
			BatteryLevel: r.Get(ColBatteryLevel),
		})
	}

	stats.Devices = len(devices)
	stats.Facts = len(facts)
	return devices, facts, stats
}
