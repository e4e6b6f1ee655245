package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/services/export"
	"github.com/lcalzada-xor/wbs/internal/core/services/registry"
	"github.com/lcalzada-xor/wbs/internal/core/services/scheduler"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeController struct{}

func (fakeController) State() domain.ControllerState { return domain.StateConnected }
func (fakeController) Connected() string             { return "AA:00:00:00:00:02" }
func (fakeController) Attempts() []domain.ConnectionAttempt {
	return []domain.ConnectionAttempt{{ID: "a1", BSSID: "AA:00:00:00:00:02", Attempt: 1, Outcome: domain.OutcomeSuccess}}
}
func (fakeController) Backoffs() []domain.BackoffEntry { return nil }

func newTestServer(t *testing.T, opts ...Option) (*Server, *scheduler.Scheduler) {
	t.Helper()
	clock := timeutil.NewMockClock(now)
	tags := registry.NewTagLedger(registry.WithTagClock(clock))
	networks := registry.NewNetworkLedger(registry.WithNetworkClock(clock))

	airtag := []domain.ManufacturerData{{CompanyID: 0x004C, Data: []byte{0x12, 0x19, 0x10, 0x00}}}
	tags.Observe(domain.BleObservation{Address: "AA:00:00:00:00:10", RSSI: -70, ManufacturerData: airtag, Timestamp: now})
	tags.Observe(domain.BleObservation{Address: "AA:00:00:00:00:11", RSSI: -50, ManufacturerData: airtag, Timestamp: now})

	networks.Observe(domain.WifiObservation{BSSID: "AA:00:00:00:00:01", SSID: "Office", Signal: 90, Security: domain.SecurityWPA2, Frequency: 5180, Timestamp: now})
	networks.Observe(domain.WifiObservation{BSSID: "AA:00:00:00:00:02", SSID: "Cafe", Signal: 45, Security: domain.SecurityOpen, Frequency: 2437, Timestamp: now})

	engine := scheduler.New(scheduler.DefaultConfig(), tags, networks, scheduler.WithClock(clock))
	exporter := export.NewExporter(tags, networks, clock, nil)

	opts = append([]Option{WithClock(clock)}, opts...)
	return NewServer(":0", engine, exporter, opts...), engine
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTagsAndNetworksAreOrdered(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	var tags []domain.TrackedTag
	rec := get(t, h, "/api/tags")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tags))
	require.Len(t, tags, 2)
	assert.Equal(t, "AA:00:00:00:00:11", tags[0].Address, "strongest first")

	var networks []domain.WifiNetwork
	rec = get(t, h, "/api/networks")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &networks))
	require.Len(t, networks, 2)
	assert.Equal(t, "AA:00:00:00:00:01", networks[0].BSSID)
	assert.Equal(t, domain.QualityExcellent, networks[0].Quality)

	rec = get(t, h, "/api/networks?open=true")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &networks))
	require.Len(t, networks, 1)
	assert.Equal(t, "Cafe", networks[0].SSID)

	rec = get(t, h, "/api/networks?band=5GHz")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &networks))
	require.Len(t, networks, 1)
	assert.Equal(t, "Office", networks[0].SSID)
}

func TestSingleEntries(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := get(t, h, "/api/networks/aa:00:00:00:00:02")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ssid":"Cafe"`)

	rec = get(t, h, "/api/tags/AA:00:00:00:00:10")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/tags/AA:00:00:00:00:99").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/networks/AA:00:00:00:00:99").Code)
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t)

	var stats domain.ScanStatistics
	rec := get(t, s.Handler(), "/api/stats")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.ActiveNetworks)
	assert.Equal(t, 1, stats.OpenNetworks)
	assert.Equal(t, 2, stats.ActiveTags)
}

func TestAutoConnect(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/api/autoconnect").Code)

	s, _ = newTestServer(t, WithController(fakeController{}))
	rec := get(t, s.Handler(), "/api/autoconnect")
	require.Equal(t, http.StatusOK, rec.Code)

	var body autoConnectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.StateConnected, body.State)
	assert.Equal(t, "AA:00:00:00:00:02", body.Connected)
	require.Len(t, body.Attempts, 1)
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := get(t, h, "/api/export?kind=networks&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "networks-20240501-120000.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3)

	rec = get(t, h, "/api/export?kind=tags")
	require.Equal(t, http.StatusOK, rec.Code)
	var record domain.SnapshotRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, domain.SnapshotTags, record.Kind)
	assert.Len(t, record.Tags, 2)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/export?kind=devices").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/export?format=xml").Code)
}

func TestTokenAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	s, _ := newTestServer(t, WithTokenHash(string(hash)))
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code, "health stays public")
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/tags").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/tags", "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/tags?token=s3cret").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/metrics").Code)
}

func TestTokenAuth_ThrottlesRepeatedFailures(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	clock := timeutil.NewMockClock(now)
	s, _ := newTestServer(t, WithClock(clock), WithTokenHash(string(hash)))
	h := s.Handler()

	for i := 0; i < maxFailures; i++ {
		assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/tags", "Authorization", "Bearer wrong").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/api/tags", "Authorization", "Bearer s3cret").Code)

	clock.Advance(failureWindow)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/tags", "Authorization", "Bearer s3cret").Code)
}

func TestWebSocketPushesSnapshots(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() WSMessage {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		var payload SnapshotPayload
		if msg.Type == "snapshot" {
			require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		}
		return WSMessage{Type: msg.Type, Payload: payload}
	}

	first := read()
	assert.Equal(t, "snapshot", first.Type)
	assert.Len(t, first.Payload.(SnapshotPayload).Networks, 2)

	require.Eventually(t, func() bool { return s.WS().Clients() == 1 }, time.Second, 5*time.Millisecond)
	s.WS().BroadcastAttempt(domain.ConnectionAttempt{ID: "a1", Outcome: domain.OutcomeSkipped})
	assert.Equal(t, "autoconnect", read().Type)

	s.WS().BroadcastSnapshot()
	assert.Equal(t, "snapshot", read().Type)
}

func TestWSManager_RunClosesClientsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.WS().Clients() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.WS().Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done
	assert.Equal(t, 0, s.WS().Clients())
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://wbs.local:8080/ws", nil)
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://wbs.local:8080")
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, sameOrigin(req))
}
