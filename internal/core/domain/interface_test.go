package domain

import (
	"testing"
)

func TestParseSecurityClass(t *testing.T) {
	tests := []struct {
		in   string
		want Security
	}{
		{"open", SecurityOpen},
		{"OPEN", SecurityOpen},
		{"wep", SecurityWEP},
		{"WPA", SecurityWPA},
		{"WPA2", SecurityWPA2},
		{" wpa3 ", SecurityWPA3},
		{"WPA4", SecurityUnknown},
		{"", SecurityUnknown},
	}

	for _, tt := range tests {
		if got := ParseSecurityClass(tt.in); got != tt.want {
			t.Errorf("ParseSecurityClass(%q) = %s; want %s", tt.in, got, tt.want)
		}
	}
}

func TestWifiNetwork_Flags(t *testing.T) {
	open := WifiNetwork{BSSID: "AA:BB:CC:DD:EE:FF", Security: SecurityOpen}
	if !open.IsOpen() {
		t.Error("expected open network")
	}
	if !open.IsHidden() {
		t.Error("expected hidden network when SSID is empty")
	}

	secured := WifiNetwork{BSSID: "AA:BB:CC:DD:EE:01", SSID: "Office", Security: SecurityWPA2}
	if secured.IsOpen() || secured.IsHidden() {
		t.Error("expected secured, visible network")
	}
}

func TestClampRSSI(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-50, -50},
		{5, 0},
		{0, 0},
		{-121, -120},
		{-300, -120},
	}

	for _, tt := range tests {
		if got := ClampRSSI(tt.in); got != tt.want {
			t.Errorf("ClampRSSI(%d) = %d; want %d", tt.in, got, tt.want)
		}
	}
}

func TestTrendSymbol(t *testing.T) {
	if TrendRising.Symbol() != "↗" || TrendFalling.Symbol() != "↘" || TrendStable.Symbol() != "→" {
		t.Error("unexpected trend symbols")
	}
}
