package domain

import "time"

// Trend describes the direction of a tag's signal strength.
type Trend string

const (
	TrendRising  Trend = "rising"  // getting closer
	TrendFalling Trend = "falling" // moving away
	TrendStable  Trend = "stable"
)

// Symbol returns the arrow used by text displays.
func (t Trend) Symbol() string {
	switch t {
	case TrendRising:
		return "↗"
	case TrendFalling:
		return "↘"
	default:
		return "→"
	}
}

// TagKind classifies a BLE advertiser from its manufacturer data.
type TagKind string

const (
	TagAirTagRegistered   TagKind = "airtag-registered"
	TagAirTagUnregistered TagKind = "airtag-unregistered"
	TagApple              TagKind = "apple"
	TagGeneric            TagKind = "generic"
)

// IsAirTag reports whether the kind is one of the AirTag payloads.
func (k TagKind) IsAirTag() bool {
	return k == TagAirTagRegistered || k == TagAirTagUnregistered
}

// RSSI bounds accepted by the ledgers. Values outside are clamped.
const (
	MinRSSI = -120
	MaxRSSI = 0
)

// ClampRSSI bounds a dBm reading to the physically plausible range.
func ClampRSSI(rssi int) int {
	if rssi < MinRSSI {
		return MinRSSI
	}
	if rssi > MaxRSSI {
		return MaxRSSI
	}
	return rssi
}

// TrackedTag is the ledger state for one BLE address.
type TrackedTag struct {
	Address   string    `json:"address"`
	Name      string    `json:"name,omitempty"`
	Kind      TagKind   `json:"kind"`
	RSSI      int       `json:"rssi"`
	Samples   []int     `json:"samples"` // oldest first
	Trend     Trend     `json:"trend"`
	Distance  float64   `json:"distance_m"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int       `json:"count"`
}
