package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/autoconnect"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
	"github.com/lcalzada-xor/wbs/internal/core/services/registry"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

type fakeSource struct {
	name    string
	openErr error

	mu      sync.Mutex
	batches [][]domain.Observation
	errs    []error
	polls   int
	closed  bool
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Open(ctx context.Context) error { return f.openErr }

func (f *fakeSource) Poll(ctx context.Context) ([]domain.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	f.polls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return nil, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func airTag(addr string, rssi int, at time.Time) domain.Observation {
	payload := make([]byte, 27)
	payload[0], payload[1], payload[2] = 0x12, 0x19, 0x10
	return domain.NewBleObservation(domain.BleObservation{
		Address:          addr,
		RSSI:             rssi,
		ManufacturerData: []domain.ManufacturerData{{CompanyID: classify.AppleCompanyID, Data: payload}},
		Timestamp:        at,
	})
}

func phone(addr string, at time.Time) domain.Observation {
	return domain.NewBleObservation(domain.BleObservation{Address: addr, RSSI: -50, Timestamp: at})
}

func ap(bssid string, signal int, sec domain.Security, band domain.WiFiBand, at time.Time) domain.Observation {
	return domain.NewWifiObservation(domain.WifiObservation{
		BSSID: bssid, SSID: "net-" + bssid[len(bssid)-2:], Signal: signal, Security: sec, Band: band, Timestamp: at,
	})
}

func newScheduler(cfg Config, opts ...Option) (*Scheduler, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(start)
	opts = append(opts, WithClock(clock))
	s := New(cfg,
		registry.NewTagLedger(registry.WithTagClock(clock)),
		registry.NewNetworkLedger(registry.WithNetworkClock(clock)),
		opts...)
	return s, clock
}

func TestScheduler_BLETickAppliesFilter(t *testing.T) {
	src := &fakeSource{name: "ble", batches: [][]domain.Observation{{
		airTag("AA:00:00:00:00:01", -60, start),
		phone("AA:00:00:00:00:02", start),
	}}}
	s, _ := newScheduler(DefaultConfig(), WithBLESource(src))

	require.True(t, s.tick(context.Background(), s.ble))

	tags := s.Tags()
	require.Len(t, tags, 1)
	assert.Equal(t, "AA:00:00:00:00:01", tags[0].Address)
	assert.Equal(t, domain.TagAirTagRegistered, tags[0].Kind)
}

func TestScheduler_FilterAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TagFilter = classify.FilterAll
	src := &fakeSource{name: "ble", batches: [][]domain.Observation{{
		airTag("AA:00:00:00:00:01", -60, start),
		phone("AA:00:00:00:00:02", start),
	}}}
	s, _ := newScheduler(cfg, WithBLESource(src))

	s.tick(context.Background(), s.ble)
	assert.Len(t, s.Tags(), 2)
}

func TestScheduler_TransientErrorCountedAndLoopContinues(t *testing.T) {
	src := &fakeSource{
		name:    "ble",
		errs:    []error{nil, domain.ErrTransientRead},
		batches: [][]domain.Observation{{airTag("AA:00:00:00:00:01", -60, start)}, nil, {airTag("AA:00:00:00:00:02", -60, start)}},
	}
	s, _ := newScheduler(DefaultConfig(), WithBLESource(src))

	assert.True(t, s.tick(context.Background(), s.ble))
	assert.True(t, s.tick(context.Background(), s.ble))
	assert.True(t, s.tick(context.Background(), s.ble))

	stats := s.Statistics()
	assert.Equal(t, int64(3), stats.BLEScans)
	assert.Equal(t, int64(1), stats.BLEErrors)
	assert.Equal(t, 2, stats.ActiveTags)
}

func TestScheduler_AdapterLostStopsLoop(t *testing.T) {
	src := &fakeSource{name: "ble", errs: []error{domain.ErrAdapterUnavailable}}
	s, _ := newScheduler(DefaultConfig(), WithBLESource(src))

	assert.False(t, s.tick(context.Background(), s.ble))
}

func TestScheduler_SweepCadence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WiFi.SweepEvery = 3
	src := &fakeSource{name: "wifi", batches: [][]domain.Observation{
		{ap("AA:00:00:00:00:01", 70, domain.SecurityOpen, domain.Band24GHz, start)},
	}}
	s, clock := newScheduler(cfg, WithWiFiSource(src))

	s.tick(context.Background(), s.wifi)
	clock.Advance(cfg.WiFi.Timeout + time.Second)

	s.tick(context.Background(), s.wifi)
	assert.Len(t, s.Networks(), 1, "not a sweep tick")

	s.tick(context.Background(), s.wifi)
	assert.Empty(t, s.Networks())
	assert.Equal(t, int64(1), s.Statistics().EvictedNetworks)
}

func TestScheduler_StalledSourceKeepsLedger(t *testing.T) {
	src := &fakeSource{
		name:    "wifi",
		batches: [][]domain.Observation{{ap("AA:00:00:00:00:01", 70, domain.SecurityOpen, domain.Band24GHz, start)}},
		errs:    []error{nil, domain.ErrTransientRead, domain.ErrTransientRead},
	}
	s, clock := newScheduler(DefaultConfig(), WithWiFiSource(src))

	s.tick(context.Background(), s.wifi)
	clock.Advance(30 * time.Second)
	s.tick(context.Background(), s.wifi)
	s.tick(context.Background(), s.wifi)

	assert.Len(t, s.Networks(), 1)
}

func TestScheduler_WiFiDropsInvalidBSSID(t *testing.T) {
	src := &fakeSource{name: "wifi", batches: [][]domain.Observation{{
		ap("AA:00:00:00:00:01", 70, domain.SecurityOpen, domain.Band24GHz, start),
		domain.NewWifiObservation(domain.WifiObservation{BSSID: "garbage", Signal: 50}),
	}}}
	s, _ := newScheduler(DefaultConfig(), WithWiFiSource(src))

	s.tick(context.Background(), s.wifi)
	assert.Len(t, s.Networks(), 1)
}

func TestScheduler_Statistics(t *testing.T) {
	src := &fakeSource{name: "wifi", batches: [][]domain.Observation{{
		ap("AA:00:00:00:00:01", 70, domain.SecurityOpen, domain.Band24GHz, start),
		ap("AA:00:00:00:00:02", 60, domain.SecurityWPA2, domain.Band5GHz, start),
		ap("AA:00:00:00:00:03", 50, domain.SecurityWPA2, domain.Band5GHz, start),
	}}}
	s, _ := newScheduler(DefaultConfig(), WithWiFiSource(src))
	s.tick(context.Background(), s.wifi)

	stats := s.Statistics()
	assert.Equal(t, 3, stats.UniqueNetworks)
	assert.Equal(t, 3, stats.ActiveNetworks)
	assert.Equal(t, 1, stats.OpenNetworks)
	assert.Equal(t, 2, stats.BandStats[domain.Band5GHz])
	assert.Equal(t, 2, stats.SecurityStats[domain.SecurityWPA2])
	assert.Equal(t, start, stats.LastUpdated)
}

func TestScheduler_RunOpenFailure(t *testing.T) {
	ble := &fakeSource{name: "ble"}
	wifi := &fakeSource{name: "wifi", openErr: errors.New("nmcli: not found")}
	s, _ := newScheduler(DefaultConfig(), WithBLESource(ble), WithWiFiSource(wifi))

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAdapterUnavailable)
	assert.True(t, ble.isClosed(), "already opened sources are released")
	assert.Zero(t, ble.polls, "loops never start")
}

func TestScheduler_RunWithoutSources(t *testing.T) {
	s, _ := newScheduler(DefaultConfig())
	assert.ErrorIs(t, s.Run(context.Background()), domain.ErrAdapterUnavailable)
}

type recordingExporter struct {
	mu    sync.Mutex
	kinds []domain.SnapshotKind
}

func (r *recordingExporter) Export(ctx context.Context, kind domain.SnapshotKind) (domain.SnapshotRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	return domain.SnapshotRecord{Kind: kind}, nil
}

func (r *recordingExporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.kinds)
}

type okConnector struct{}

func (okConnector) Connect(context.Context, string, string) error { return nil }

func TestScheduler_RunLoopsUntilCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BLE.Interval = 5 * time.Millisecond
	cfg.WiFi.Interval = 5 * time.Millisecond
	cfg.AutoConnectInterval = 5 * time.Millisecond
	cfg.ExportInterval = 5 * time.Millisecond
	cfg.ExportKinds = []domain.SnapshotKind{domain.SnapshotTags, domain.SnapshotNetworks}

	tags := registry.NewTagLedger()
	networks := registry.NewNetworkLedger()
	ble := &fakeSource{name: "ble", batches: [][]domain.Observation{{airTag("AA:00:00:00:00:01", -60, time.Now())}}}
	wifi := &fakeSource{name: "wifi", batches: [][]domain.Observation{{ap("AA:00:00:00:00:09", 70, domain.SecurityOpen, domain.Band24GHz, time.Now())}}}
	exporter := &recordingExporter{}
	controller := autoconnect.NewController(networks, okConnector{}, autoconnect.DefaultConfig())

	var (
		hookMu   sync.Mutex
		outcomes []domain.AttemptOutcome
	)
	hook := func(a domain.ConnectionAttempt) {
		hookMu.Lock()
		defer hookMu.Unlock()
		outcomes = append(outcomes, a.Outcome)
	}

	s := New(cfg, tags, networks,
		WithBLESource(ble), WithWiFiSource(wifi),
		WithController(controller), WithAttemptHook(hook), WithExporter(exporter))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return controller.Connected() == "AA:00:00:00:00:09" && exporter.count() >= 2 && len(s.Tags()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, map[domain.ObservationKind]bool{domain.KindBLE: true, domain.KindWiFi: true}, s.LoopStatus())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.True(t, ble.isClosed())
	assert.True(t, wifi.isClosed())
	assert.False(t, s.LoopStatus()[domain.KindBLE])
	assert.Equal(t, domain.StateIdle, s.Statistics().ControllerState)

	hookMu.Lock()
	defer hookMu.Unlock()
	assert.Contains(t, outcomes, domain.OutcomeSuccess)
}
