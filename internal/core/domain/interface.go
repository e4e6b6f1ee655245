package domain

import (
	"strings"
	"time"
)

// WiFiBand represents a typed string for frequency bands.
type WiFiBand string

const (
	Band24GHz   WiFiBand = "2.4GHz"
	Band5GHz    WiFiBand = "5GHz"
	Band6GHz    WiFiBand = "6GHz"
	BandUnknown WiFiBand = "unknown"
)

// Security is the closed set of security classes a network advertises.
type Security string

const (
	SecurityOpen    Security = "open"
	SecurityWEP     Security = "WEP"
	SecurityWPA     Security = "WPA"
	SecurityWPA2    Security = "WPA2"
	SecurityWPA3    Security = "WPA3"
	SecurityUnknown Security = "unknown"
)

// ParseSecurityClass maps a stored class name back to a Security value.
func ParseSecurityClass(s string) Security {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN":
		return SecurityOpen
	case "WEP":
		return SecurityWEP
	case "WPA":
		return SecurityWPA
	case "WPA2":
		return SecurityWPA2
	case "WPA3":
		return SecurityWPA3
	default:
		return SecurityUnknown
	}
}

// QualityTier is a coarse label for a signal percentage.
type QualityTier string

const (
	QualityExcellent QualityTier = "Excellent"
	QualityGood      QualityTier = "Good"
	QualityFair      QualityTier = "Fair"
	QualityWeak      QualityTier = "Weak"
)

// WifiNetwork is the ledger state for one access point radio.
type WifiNetwork struct {
	BSSID     string      `json:"bssid"`
	SSID      string      `json:"ssid"`
	Security  Security    `json:"security"`
	Signal    int         `json:"signal"`
	RSSI      int         `json:"rssi,omitempty"`
	Band      WiFiBand    `json:"band"`
	Frequency int         `json:"freq,omitempty"`
	Channel   int         `json:"channel,omitempty"`
	Quality   QualityTier `json:"quality"`
	Count     int         `json:"count"`
	FirstSeen time.Time   `json:"first_seen"`
	LastSeen  time.Time   `json:"last_seen"`
}

// IsOpen reports whether the network requires no authentication.
func (n WifiNetwork) IsOpen() bool {
	return n.Security == SecurityOpen
}

// IsHidden reports whether the SSID is not broadcast.
func (n WifiNetwork) IsHidden() bool {
	return n.SSID == ""
}
