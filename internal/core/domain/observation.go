package domain

import "time"

// ObservationKind tags which radio produced an Observation.
type ObservationKind string

const (
	KindBLE  ObservationKind = "ble"
	KindWiFi ObservationKind = "wifi"
)

// ManufacturerData is one manufacturer-specific AD structure of a BLE advertisement.
type ManufacturerData struct {
	CompanyID uint16 `json:"company_id"`
	Data      []byte `json:"data"`
}

// BleObservation is a single BLE advertisement sighting.
type BleObservation struct {
	Address          string             `json:"address"`
	RSSI             int                `json:"rssi"`
	Name             string             `json:"name,omitempty"`
	ManufacturerData []ManufacturerData `json:"manufacturer_data,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
}

// WifiObservation is a single access point sighting from a scan result or beacon.
type WifiObservation struct {
	BSSID     string    `json:"bssid"`
	SSID      string    `json:"ssid"`
	Signal    int       `json:"signal"`         // percent, 0-100; negative means unknown
	RSSI      int       `json:"rssi,omitempty"` // dBm, 0 when the source does not report it
	Security  Security  `json:"security"`
	Frequency int       `json:"freq,omitempty"` // MHz
	Channel   int       `json:"channel,omitempty"`
	Band      WiFiBand  `json:"band,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Observation is the tagged variant emitted by radio sources.
// Exactly one of BLE or WiFi is set, matching Kind.
type Observation struct {
	Kind ObservationKind
	BLE  *BleObservation
	WiFi *WifiObservation
}

// NewBleObservation wraps a BLE sighting.
func NewBleObservation(o BleObservation) Observation {
	return Observation{Kind: KindBLE, BLE: &o}
}

// NewWifiObservation wraps a WiFi sighting.
func NewWifiObservation(o WifiObservation) Observation {
	return Observation{Kind: KindWiFi, WiFi: &o}
}
