package ports

import (
	"context"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// Storage defines the interface for snapshot persistence.
type Storage interface {
	SaveSnapshots(ctx context.Context, records []domain.SnapshotRecord) error
	LatestSnapshot(ctx context.Context, kind domain.SnapshotKind) (*domain.SnapshotRecord, error)
	ListSnapshots(ctx context.Context, kind domain.SnapshotKind, limit int) ([]domain.SnapshotRecord, error)
	Close() error
}
