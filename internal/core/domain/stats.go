package domain

import (
	"time"
)

// ScanStatistics is an aggregate view derived from the ledgers and scan counters.
// It is recomputed on demand and never stored as a source of truth.
type ScanStatistics struct {
	BLEScans   int64 `json:"ble_scans"`
	WiFiScans  int64 `json:"wifi_scans"`
	BLEErrors  int64 `json:"ble_errors"`
	WiFiErrors int64 `json:"wifi_errors"`

	UniqueTags     int `json:"unique_tags"`
	UniqueNetworks int `json:"unique_networks"`
	ActiveTags     int `json:"active_tags"`
	ActiveNetworks int `json:"active_networks"`
	OpenNetworks   int `json:"open_networks"`

	EvictedTags     int64 `json:"evicted_tags"`
	EvictedNetworks int64 `json:"evicted_networks"`

	// Distributions
	BandStats     map[WiFiBand]int `json:"band_stats"`
	SecurityStats map[Security]int `json:"security_stats"`

	ControllerState ControllerState `json:"controller_state,omitempty"`

	// Metadata
	LastUpdated time.Time `json:"updated_at"`
}

// NewScanStatistics initializes a stats object with empty maps to prevent nil access.
func NewScanStatistics() ScanStatistics {
	return ScanStatistics{
		BandStats:     make(map[WiFiBand]int),
		SecurityStats: make(map[Security]int),
		LastUpdated:   time.Now(),
	}
}

// IsStale returns true if the stats haven't been updated within the given TTL.
func (s *ScanStatistics) IsStale(ttl time.Duration) bool {
	return time.Since(s.LastUpdated) > ttl
}
