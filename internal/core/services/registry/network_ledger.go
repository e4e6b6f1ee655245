package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

var _ ports.Ledger[domain.WifiObservation, domain.WifiNetwork] = (*NetworkLedger)(nil)

// NetworkLedger tracks access points keyed by BSSID.
type NetworkLedger struct {
	mu       sync.RWMutex
	networks map[string]*domain.WifiNetwork
	seen     map[string]struct{}
	evicted  int64

	thresholds classify.Thresholds
	clock      timeutil.Clock

	Subject[domain.WifiNetwork]
}

// NetworkOption configures a NetworkLedger.
type NetworkOption func(*NetworkLedger)

// WithThresholds overrides the quality tier bounds.
func WithThresholds(t classify.Thresholds) NetworkOption {
	return func(l *NetworkLedger) { l.thresholds = t }
}

// WithNetworkClock sets the clock used for observations without a timestamp.
func WithNetworkClock(c timeutil.Clock) NetworkOption {
	return func(l *NetworkLedger) { l.clock = c }
}

// NewNetworkLedger creates an empty ledger.
func NewNetworkLedger(opts ...NetworkOption) *NetworkLedger {
	l := &NetworkLedger{
		networks:   make(map[string]*domain.WifiNetwork),
		seen:       make(map[string]struct{}),
		thresholds: classify.DefaultThresholds(),
		clock:      timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Observe records one scan result and returns the updated network.
func (l *NetworkLedger) Observe(obs domain.WifiObservation) domain.WifiNetwork {
	bssid := domain.NormalizeMAC(obs.BSSID)
	ts := obs.Timestamp
	if ts.IsZero() {
		ts = l.clock.Now()
	}

	rssi := 0
	if obs.RSSI != 0 {
		rssi = domain.ClampRSSI(obs.RSSI)
	}
	signal := obs.Signal
	switch {
	case signal >= 0:
		signal = classify.ClampSignal(signal)
	case rssi != 0:
		signal = classify.SignalFromDBM(rssi)
	default:
		signal = 0
	}

	channel := obs.Channel
	if channel == 0 {
		channel = classify.Channel(obs.Frequency)
	}
	band := obs.Band
	if band == "" || band == domain.BandUnknown {
		band = classify.Band(obs.Frequency)
	}

	l.mu.Lock()
	n, ok := l.networks[bssid]
	if !ok {
		n = &domain.WifiNetwork{
			BSSID:     bssid,
			Security:  domain.SecurityUnknown,
			Band:      domain.BandUnknown,
			FirstSeen: ts,
		}
		l.networks[bssid] = n
		l.seen[bssid] = struct{}{}
	}

	if obs.SSID != "" {
		n.SSID = obs.SSID
	}
	if obs.Security != "" {
		n.Security = obs.Security
	}
	n.Signal = signal
	n.RSSI = rssi
	if obs.Frequency > 0 {
		n.Frequency = obs.Frequency
	}
	if channel > 0 {
		n.Channel = channel
	}
	if band != domain.BandUnknown {
		n.Band = band
	}
	n.Quality = classify.Quality(signal, l.thresholds)
	n.Count++
	if ts.After(n.LastSeen) {
		n.LastSeen = ts
	}
	out := *n
	l.mu.Unlock()

	if !ok {
		l.notifyAdded(out)
	}
	return out
}

// Sweep evicts every network whose last sighting is more than timeout
// before now and returns the evicted BSSIDs in ascending order.
func (l *NetworkLedger) Sweep(now time.Time, timeout time.Duration) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var evicted []string
	for bssid, n := range l.networks {
		if now.Sub(n.LastSeen) > timeout {
			delete(l.networks, bssid)
			evicted = append(evicted, bssid)
		}
	}
	l.evicted += int64(len(evicted))
	sort.Strings(evicted)
	return evicted
}

// Snapshot returns copies ordered by signal (strongest first), then BSSID.
func (l *NetworkLedger) Snapshot() []domain.WifiNetwork {
	l.mu.RLock()
	out := make([]domain.WifiNetwork, 0, len(l.networks))
	for _, n := range l.networks {
		out = append(out, *n)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Signal != out[j].Signal {
			return out[i].Signal > out[j].Signal
		}
		return out[i].BSSID < out[j].BSSID
	})
	return out
}

// Get returns a copy of one network.
func (l *NetworkLedger) Get(bssid string) (domain.WifiNetwork, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.networks[domain.NormalizeMAC(bssid)]
	if !ok {
		return domain.WifiNetwork{}, false
	}
	return *n, true
}

// Len returns the number of networks currently tracked.
func (l *NetworkLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.networks)
}

// UniqueSeen returns how many distinct BSSIDs were ever observed.
func (l *NetworkLedger) UniqueSeen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// Evicted returns the total number of evictions.
func (l *NetworkLedger) Evicted() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.evicted
}

// Reconfigure applies new quality thresholds to every tracked network.
func (l *NetworkLedger) Reconfigure(t classify.Thresholds) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.thresholds = t
	for _, n := range l.networks {
		n.Quality = classify.Quality(n.Signal, t)
	}
}
