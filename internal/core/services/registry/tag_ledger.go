package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/core/services/classify"
	"github.com/lcalzada-xor/wbs/internal/core/services/estimator"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// DefaultWindow is the number of RSSI samples kept per tag.
const DefaultWindow = 10

var _ ports.Ledger[domain.BleObservation, domain.TrackedTag] = (*TagLedger)(nil)

type tagEntry struct {
	tag     domain.TrackedTag
	samples *Ring
}

// TagLedger tracks BLE advertisers keyed by hardware address.
// A single scan loop writes; any number of readers take snapshots.
type TagLedger struct {
	mu      sync.RWMutex
	entries map[string]*tagEntry
	seen    map[string]struct{}
	evicted int64

	params estimator.Params
	window int
	clock  timeutil.Clock

	Subject[domain.TrackedTag]
}

// TagOption configures a TagLedger.
type TagOption func(*TagLedger)

// WithEstimator overrides the distance and trend parameters.
func WithEstimator(p estimator.Params) TagOption {
	return func(l *TagLedger) { l.params = p }
}

// WithWindow sets the per-tag sample capacity.
func WithWindow(n int) TagOption {
	return func(l *TagLedger) {
		if n > 0 {
			l.window = n
		}
	}
}

// WithTagClock sets the clock used for observations without a timestamp.
func WithTagClock(c timeutil.Clock) TagOption {
	return func(l *TagLedger) { l.clock = c }
}

// NewTagLedger creates an empty ledger.
func NewTagLedger(opts ...TagOption) *TagLedger {
	l := &TagLedger{
		entries: make(map[string]*tagEntry),
		seen:    make(map[string]struct{}),
		params:  estimator.DefaultParams(),
		window:  DefaultWindow,
		clock:   timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Observe records one advertisement and returns the updated tag.
func (l *TagLedger) Observe(obs domain.BleObservation) domain.TrackedTag {
	addr := domain.NormalizeMAC(obs.Address)
	rssi := domain.ClampRSSI(obs.RSSI)
	ts := obs.Timestamp
	if ts.IsZero() {
		ts = l.clock.Now()
	}
	kind := classify.Tag(obs.ManufacturerData)

	l.mu.Lock()
	e, ok := l.entries[addr]
	if !ok {
		e = &tagEntry{
			tag: domain.TrackedTag{
				Address:   addr,
				Kind:      kind,
				FirstSeen: ts,
			},
			samples: NewRing(l.window),
		}
		l.entries[addr] = e
		l.seen[addr] = struct{}{}
	}

	e.samples.Push(rssi)
	t := &e.tag
	t.RSSI = rssi
	t.Count++
	if obs.Name != "" {
		t.Name = obs.Name
	}
	if kind != domain.TagGeneric {
		t.Kind = kind
	}
	if ts.After(t.LastSeen) {
		t.LastSeen = ts
	}
	l.recompute(e)
	out := copyTag(e)
	l.mu.Unlock()

	if !ok {
		l.notifyAdded(out)
	}
	return out
}

func (l *TagLedger) recompute(e *tagEntry) {
	samples := e.samples.Values()
	e.tag.Trend = l.params.Trend(samples)
	e.tag.Distance = l.params.DistanceFromWindow(samples)
}

// Sweep evicts every tag whose last sighting is more than timeout before
// now and returns the evicted addresses in ascending order.
func (l *TagLedger) Sweep(now time.Time, timeout time.Duration) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var evicted []string
	for addr, e := range l.entries {
		if now.Sub(e.tag.LastSeen) > timeout {
			delete(l.entries, addr)
			evicted = append(evicted, addr)
		}
	}
	l.evicted += int64(len(evicted))
	sort.Strings(evicted)
	return evicted
}

// Snapshot returns deep copies ordered by RSSI (strongest first), then address.
func (l *TagLedger) Snapshot() []domain.TrackedTag {
	l.mu.RLock()
	out := make([]domain.TrackedTag, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, copyTag(e))
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Get returns a copy of one tag.
func (l *TagLedger) Get(address string) (domain.TrackedTag, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[domain.NormalizeMAC(address)]
	if !ok {
		return domain.TrackedTag{}, false
	}
	return copyTag(e), true
}

// Len returns the number of tags currently tracked.
func (l *TagLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// UniqueSeen returns how many distinct addresses were ever observed.
func (l *TagLedger) UniqueSeen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// Evicted returns the total number of evictions.
func (l *TagLedger) Evicted() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.evicted
}

// Reconfigure applies new estimator parameters and window capacity to all
// tracked tags. A non-positive window keeps the current capacity.
func (l *TagLedger) Reconfigure(p estimator.Params, window int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.params = p
	if window > 0 {
		l.window = window
	}
	for _, e := range l.entries {
		e.samples.Resize(l.window)
		l.recompute(e)
	}
}

func copyTag(e *tagEntry) domain.TrackedTag {
	t := e.tag
	t.Samples = e.samples.Values()
	return t
}
