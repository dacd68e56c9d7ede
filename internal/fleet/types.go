// Package fleet holds the domain model of the import: static device entities
// keyed by serial number and the time-series tracking facts that reference
// them.
package fleet

import "github.com/spken/ict-skills-2025/pkg/records"

// Canonical column keys after header normalization.
const (
	ColName              = "name"
	ColAddressLine       = "address_line"
	ColPostalCode        = "postal_code"
	ColCity              = "city"
	ColCanton            = "canton"
	ColHomeLatitude      = "home_latitude"
	ColHomeLongitude     = "home_longitude"
	ColSerialNumber      = "serial_number"
	ColVendor            = "vendor"
	ColModel             = "model"
	ColFirmware          = "firmware"
	ColPurchaseDate      = "purchase_date"
	ColLatestMaintenance = "latest_maintenance"
	ColPortNumber        = "port_number"
	ColTimestamp         = "timestamp"
	ColLongitude         = "longitude"
	ColLatitude          = "latitude"
	ColDeviceState       = "device_state"
	ColBatteryLevel      = "battery_level"
)

// HeaderMap translates the export's PascalCase headers to canonical keys.
var HeaderMap = map[string]string{
	"Name":              ColName,
	"AddressLine":       ColAddressLine,
	"PostalCode":        ColPostalCode,
	"City":              ColCity,
	"Canton":            ColCanton,
	"HomeLatitude":      ColHomeLatitude,
	"HomeLongitude":     ColHomeLongitude,
	"SerialNumber":      ColSerialNumber,
	"Vendor":            ColVendor,
	"Model":             ColModel,
	"Firmware":          ColFirmware,
	"PurchaseDate":      ColPurchaseDate,
	"LatestMaintenance": ColLatestMaintenance,
	"PortNumber":        ColPortNumber,
	"Timestamp":         ColTimestamp,
	"Longitude":         ColLongitude,
	"Latitude":          ColLatitude,
	"DeviceState":       ColDeviceState,
	"BatteryLevel":      ColBatteryLevel,
}

// DateColumns are normalized to UTC timestamps by the cleaning chain.
var DateColumns = []string{ColPurchaseDate, ColLatestMaintenance, ColTimestamp}

// NumberColumns are coerced to numeric cells by the cleaning chain.
// Postal codes stay text: leading zeros matter.
var NumberColumns = []string{
	ColHomeLatitude, ColHomeLongitude,
	ColLatitude, ColLongitude,
	ColBatteryLevel, ColPortNumber,
}

// Device is one physical mower: identity plus slowly-changing attributes.
// Attribute cells keep the records.Value model so nullability survives all
// the way to the insert arguments.
type Device struct {
	SerialNumber      string
	Name              records.Value
	AddressLine       records.Value
	PostalCode        records.Value
	City              records.Value
	Canton            records.Value
	HomeLatitude      records.Value
	HomeLongitude     records.Value
	Vendor            records.Value
	Model             records.Value
	Firmware          records.Value
	PurchaseDate      records.Value
	LatestMaintenance records.Value
	PortNumber        records.Value
}

// TrackingFact is one timestamped observation referencing a device by serial
// number. Timestamp is always a non-null records.Time by construction; the
// splitter drops rows without one.
type TrackingFact struct {
	SerialNumber string
	Timestamp    records.Value
	Latitude     records.Value
	Longitude    records.Value
	DeviceState  records.Value
	BatteryLevel records.Value
}
