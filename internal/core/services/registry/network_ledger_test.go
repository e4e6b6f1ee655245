package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
)

func wifiAt(bssid, ssid string, signal int, sec domain.Security, offset time.Duration) domain.WifiObservation {
	return domain.WifiObservation{
		BSSID:     bssid,
		SSID:      ssid,
		Signal:    signal,
		Security:  sec,
		Frequency: 2437,
		Timestamp: base.Add(offset),
	}
}

func TestNetworkLedger_ObserveDerivesFields(t *testing.T) {
	l := NewNetworkLedger()

	n := l.Observe(wifiAt("aa:bb:cc:dd:ee:01", "Cafe", 82, domain.SecurityOpen, 0))

	assert.Equal(t, "AA:BB:CC:DD:EE:01", n.BSSID)
	assert.Equal(t, domain.QualityExcellent, n.Quality)
	assert.Equal(t, domain.Band24GHz, n.Band)
	assert.Equal(t, 6, n.Channel)
	assert.True(t, n.IsOpen())

	n = l.Observe(wifiAt("AA:BB:CC:DD:EE:01", "Cafe", 55, domain.SecurityOpen, time.Second))
	assert.Equal(t, domain.QualityFair, n.Quality)
	assert.Equal(t, 2, n.Count)
	assert.Equal(t, base, n.FirstSeen)
}

func TestNetworkLedger_SignalNormalization(t *testing.T) {
	l := NewNetworkLedger()

	over := l.Observe(wifiAt("AA:BB:CC:DD:EE:01", "A", 140, domain.SecurityOpen, 0))
	assert.Equal(t, 100, over.Signal)

	obs := wifiAt("AA:BB:CC:DD:EE:02", "B", -1, domain.SecurityWPA2, 0)
	obs.RSSI = -70
	fromDBM := l.Observe(obs)
	assert.Equal(t, 60, fromDBM.Signal)
	assert.Equal(t, -70, fromDBM.RSSI)

	unknown := l.Observe(wifiAt("AA:BB:CC:DD:EE:03", "C", -1, domain.SecurityWPA2, 0))
	assert.Equal(t, 0, unknown.Signal)
	assert.Equal(t, domain.QualityWeak, unknown.Quality)
}

func TestNetworkLedger_SameSSIDManyBSSIDs(t *testing.T) {
	l := NewNetworkLedger()
	l.Observe(wifiAt("AA:BB:CC:DD:EE:01", "Office", 70, domain.SecurityWPA2, 0))
	l.Observe(wifiAt("AA:BB:CC:DD:EE:02", "Office", 70, domain.SecurityWPA2, 0))

	assert.Equal(t, 2, l.Len())
}

func TestNetworkLedger_HiddenBeaconKeepsSSID(t *testing.T) {
	l := NewNetworkLedger()
	l.Observe(wifiAt("AA:BB:CC:DD:EE:01", "Office", 70, domain.SecurityWPA2, 0))
	n := l.Observe(wifiAt("AA:BB:CC:DD:EE:01", "", 71, "", time.Second))

	assert.Equal(t, "Office", n.SSID)
	assert.Equal(t, domain.SecurityWPA2, n.Security)
}

func TestNetworkLedger_SnapshotOrder(t *testing.T) {
	l := NewNetworkLedger()
	l.Observe(wifiAt("AA:BB:CC:DD:EE:03", "C", 50, domain.SecurityOpen, 0))
	l.Observe(wifiAt("AA:BB:CC:DD:EE:02", "B", 90, domain.SecurityOpen, 0))
	l.Observe(wifiAt("AA:BB:CC:DD:EE:01", "A", 50, domain.SecurityOpen, 0))

	var order []string
	for _, n := range l.Snapshot() {
		order = append(order, n.BSSID)
	}
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:02", "AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:03"}, order)
}

func TestNetworkLedger_Sweep(t *testing.T) {
	l := NewNetworkLedger()
	l.Observe(wifiAt("AA:BB:CC:DD:EE:01", "A", 50, domain.SecurityOpen, 0))
	l.Observe(wifiAt("AA:BB:CC:DD:EE:02", "B", 50, domain.SecurityOpen, 100*time.Second))

	evicted := l.Sweep(base.Add(121*time.Second), 120*time.Second)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:01"}, evicted)
	assert.Empty(t, l.Sweep(base.Add(121*time.Second), 120*time.Second))

	_, ok := l.Get("AA:BB:CC:DD:EE:02")
	assert.True(t, ok)
	assert.Equal(t, 2, l.UniqueSeen())
	assert.Equal(t, int64(1), l.Evicted())
}

func TestNetworkLedger_Reconfigure(t *testing.T) {
	l := NewNetworkLedger()
	l.Observe(wifiAt("AA:BB:CC:DD:EE:01", "A", 75, domain.SecurityOpen, 0))

	l.Reconfigure(classify.Thresholds{Excellent: 70, Good: 50, Fair: 30})

	n, ok := l.Get("aa:bb:cc:dd:ee:01")
	require.True(t, ok)
	assert.Equal(t, domain.QualityExcellent, n.Quality)
}
