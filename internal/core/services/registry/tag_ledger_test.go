package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
	"github.com/lcalzada-xor/wbs/internal/core/services/estimator"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func bleAt(addr string, rssi int, offset time.Duration) domain.BleObservation {
	return domain.BleObservation{Address: addr, RSSI: rssi, Timestamp: base.Add(offset)}
}

func TestTagLedger_ObserveNewTag(t *testing.T) {
	l := NewTagLedger()

	tag := l.Observe(bleAt("aa:bb:cc:dd:ee:ff", -59, 0))

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", tag.Address)
	assert.Equal(t, -59, tag.RSSI)
	assert.Equal(t, 1, tag.Count)
	assert.Equal(t, base, tag.FirstSeen)
	assert.Equal(t, base, tag.LastSeen)
	assert.Equal(t, domain.TrendStable, tag.Trend)
	assert.InDelta(t, 1.0, tag.Distance, 1e-9)
	assert.Equal(t, domain.TagGeneric, tag.Kind)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1, l.UniqueSeen())
}

func TestTagLedger_TrendScenario(t *testing.T) {
	l := NewTagLedger()
	addr := "AA:BB:CC:DD:EE:FF"

	var tag domain.TrackedTag
	for i, rssi := range []int{-60, -58, -55, -50} {
		tag = l.Observe(bleAt(addr, rssi, time.Duration(i)*time.Second))
	}
	assert.Equal(t, domain.TrendStable, tag.Trend)

	// The documented walk-through expects rising here, but five samples
	// are below the 2k minimum, which keeps the trend stable.
	tag = l.Observe(bleAt(addr, -45, 4*time.Second))
	assert.Equal(t, domain.TrendStable, tag.Trend)

	tag = l.Observe(bleAt(addr, -45, 5*time.Second))
	assert.Equal(t, domain.TrendRising, tag.Trend)
	assert.Equal(t, 6, tag.Count)
	assert.Equal(t, base, tag.FirstSeen)
	assert.Equal(t, base.Add(5*time.Second), tag.LastSeen)
}

func TestTagLedger_WindowBounded(t *testing.T) {
	l := NewTagLedger(WithWindow(4))

	for i := 0; i < 50; i++ {
		tag := l.Observe(bleAt("11:22:33:44:55:66", -40-i, time.Duration(i)*time.Second))
		assert.LessOrEqual(t, len(tag.Samples), 4)
	}

	tag, ok := l.Get("11:22:33:44:55:66")
	require.True(t, ok)
	assert.Equal(t, []int{-86, -87, -88, -89}, tag.Samples)
}

func TestTagLedger_ClampsRSSI(t *testing.T) {
	l := NewTagLedger()

	hot := l.Observe(bleAt("AA:AA:AA:AA:AA:01", 12, 0))
	cold := l.Observe(bleAt("AA:AA:AA:AA:AA:02", -200, 0))

	assert.Equal(t, 0, hot.RSSI)
	assert.Equal(t, -120, cold.RSSI)
}

func TestTagLedger_ZeroTimestampUsesClock(t *testing.T) {
	clock := timeutil.NewMockClock(base.Add(time.Hour))
	l := NewTagLedger(WithTagClock(clock))

	tag := l.Observe(domain.BleObservation{Address: "AA:AA:AA:AA:AA:01", RSSI: -70})
	assert.Equal(t, base.Add(time.Hour), tag.LastSeen)
}

func TestTagLedger_SweepExactAndIdempotent(t *testing.T) {
	l := NewTagLedger()
	timeout := 60 * time.Second

	l.Observe(bleAt("AA:AA:AA:AA:AA:03", -70, 0))              // 61s old at sweep
	l.Observe(bleAt("AA:AA:AA:AA:AA:01", -70, 0))              // 61s old at sweep
	l.Observe(bleAt("AA:AA:AA:AA:AA:02", -70, time.Second))    // exactly 60s old, kept
	l.Observe(bleAt("AA:AA:AA:AA:AA:04", -70, 30*time.Second)) // fresh

	now := base.Add(61 * time.Second)
	evicted := l.Sweep(now, timeout)

	assert.Equal(t, []string{"AA:AA:AA:AA:AA:01", "AA:AA:AA:AA:AA:03"}, evicted)
	assert.Equal(t, 2, l.Len())
	assert.Empty(t, l.Sweep(now, timeout))
	assert.Equal(t, int64(2), l.Evicted())
	assert.Equal(t, 4, l.UniqueSeen(), "unique count survives eviction")

	for _, tag := range l.Snapshot() {
		assert.LessOrEqual(t, now.Sub(tag.LastSeen), timeout)
	}
}

func TestTagLedger_SnapshotOrderAndIsolation(t *testing.T) {
	l := NewTagLedger()
	l.Observe(bleAt("AA:AA:AA:AA:AA:03", -70, 0))
	l.Observe(bleAt("AA:AA:AA:AA:AA:01", -50, 0))
	l.Observe(bleAt("AA:AA:AA:AA:AA:02", -70, 0))

	snap := l.Snapshot()
	var order []string
	for _, tag := range snap {
		order = append(order, tag.Address)
	}
	assert.Equal(t, []string{"AA:AA:AA:AA:AA:01", "AA:AA:AA:AA:AA:02", "AA:AA:AA:AA:AA:03"}, order)

	snap[0].Samples[0] = 999
	again, _ := l.Get("AA:AA:AA:AA:AA:01")
	assert.Equal(t, []int{-50}, again.Samples)
}

func TestTagLedger_KindAndName(t *testing.T) {
	l := NewTagLedger()
	payload := make([]byte, 27)
	payload[0], payload[1] = 0x07, 0x19

	obs := bleAt("AA:AA:AA:AA:AA:01", -60, 0)
	obs.Name = "tag"
	obs.ManufacturerData = []domain.ManufacturerData{{CompanyID: classify.AppleCompanyID, Data: payload}}
	l.Observe(obs)

	// A later advertisement without manufacturer data keeps the classification.
	tag := l.Observe(bleAt("AA:AA:AA:AA:AA:01", -61, time.Second))
	assert.Equal(t, domain.TagAirTagUnregistered, tag.Kind)
	assert.Equal(t, "tag", tag.Name)
}

func TestTagLedger_Reconfigure(t *testing.T) {
	l := NewTagLedger()
	for i := 0; i < 8; i++ {
		l.Observe(bleAt("AA:AA:AA:AA:AA:01", -79, time.Duration(i)*time.Second))
	}

	p := estimator.DefaultParams()
	p.PathLossExponent = 4
	l.Reconfigure(p, 3)

	tag, ok := l.Get("AA:AA:AA:AA:AA:01")
	require.True(t, ok)
	assert.Len(t, tag.Samples, 3)
	assert.InDelta(t, p.Distance(-79), tag.Distance, 1e-9)
}

func TestTagLedger_Observer(t *testing.T) {
	l := NewTagLedger()
	var added []string
	l.AddObserver(ObserverFunc[domain.TrackedTag](func(tag domain.TrackedTag) {
		added = append(added, tag.Address)
	}))

	l.Observe(bleAt("AA:AA:AA:AA:AA:01", -60, 0))
	l.Observe(bleAt("AA:AA:AA:AA:AA:01", -60, time.Second))
	l.Observe(bleAt("AA:AA:AA:AA:AA:02", -60, 0))

	if diff := cmp.Diff([]string{"AA:AA:AA:AA:AA:01", "AA:AA:AA:AA:AA:02"}, added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
}

func TestTagLedger_ConcurrentReaders(t *testing.T) {
	l := NewTagLedger(WithWindow(5))
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			l.Observe(bleAt(fmt.Sprintf("AA:AA:AA:AA:AA:%02X", i%16), -60-i%30, time.Duration(i)*time.Millisecond))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				for _, tag := range l.Snapshot() {
					if len(tag.Samples) > 5 {
						t.Errorf("window exceeded: %d", len(tag.Samples))
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, l.Len())
}
