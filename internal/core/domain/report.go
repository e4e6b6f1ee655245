package domain

import "time"

// SnapshotKind selects which ledger a snapshot record was taken from.
type SnapshotKind string

const (
	SnapshotTags     SnapshotKind = "tags"
	SnapshotNetworks SnapshotKind = "networks"
)

// IsValid reports whether k names a known ledger.
func (k SnapshotKind) IsValid() bool {
	return k == SnapshotTags || k == SnapshotNetworks
}

// SnapshotRecord is a timestamped copy of one ledger handed to snapshot sinks.
type SnapshotRecord struct {
	ID         string        `json:"id"`
	Kind       SnapshotKind  `json:"kind"`
	CapturedAt time.Time     `json:"captured_at"`
	Tags       []TrackedTag  `json:"tags,omitempty"`
	Networks   []WifiNetwork `json:"networks,omitempty"`
}

// Len returns the number of entries in the record.
func (r SnapshotRecord) Len() int {
	if r.Kind == SnapshotNetworks {
		return len(r.Networks)
	}
	return len(r.Tags)
}
