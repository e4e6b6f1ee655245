package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// RadioSource defines the interface for scan adapters (BLE advertisements,
// WiFi scan results, monitor-mode beacons).
//
// Open fails with domain.ErrAdapterUnavailable when the radio is missing or
// the process lacks permission. Once open, Poll returns the observations
// gathered since the previous call; a failed read is reported as
// domain.ErrTransientRead and the next Poll resumes the stream.
type RadioSource interface {
	Name() string
	Open(ctx context.Context) error
	Poll(ctx context.Context) ([]domain.Observation, error)
	Close() error
}

// NetworkConnector is the external network-control collaborator used by the
// auto-connect controller. It returns nil on association success.
type NetworkConnector interface {
	Connect(ctx context.Context, ssid, bssid string) error
}

// SnapshotSink receives timestamped ledger snapshots.
type SnapshotSink interface {
	WriteSnapshot(ctx context.Context, record domain.SnapshotRecord) error
}

// Ledger is the capability set shared by the BLE and WiFi ledgers.
type Ledger[O any, R any] interface {
	Observe(obs O) R
	Sweep(now time.Time, timeout time.Duration) []string
	Snapshot() []R
	Len() int
}

// TagReader is the read-only view of the BLE ledger handed to consumers.
type TagReader interface {
	Snapshot() []domain.TrackedTag
}

// NetworkReader is the read-only view of the WiFi ledger handed to consumers.
type NetworkReader interface {
	Snapshot() []domain.WifiNetwork
}

// EngineReader is what display surfaces may query. It never mutates state.
type EngineReader interface {
	Tags() []domain.TrackedTag
	Networks() []domain.WifiNetwork
	Statistics() domain.ScanStatistics
}
