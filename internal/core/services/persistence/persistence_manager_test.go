package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
)

// MockStorage implements ports.Storage for testing
type MockStorage struct {
	Saved   []domain.SnapshotRecord
	Batches int
	mu      sync.Mutex
}

func (m *MockStorage) SaveSnapshots(ctx context.Context, records []domain.SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, records...)
	m.Batches++
	return nil
}

func (m *MockStorage) LatestSnapshot(ctx context.Context, kind domain.SnapshotKind) (*domain.SnapshotRecord, error) {
	return nil, nil
}

func (m *MockStorage) ListSnapshots(ctx context.Context, kind domain.SnapshotKind, limit int) ([]domain.SnapshotRecord, error) {
	return nil, nil
}

func (m *MockStorage) Close() error { return nil }

func (m *MockStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Saved)
}

func record(id string) domain.SnapshotRecord {
	return domain.SnapshotRecord{ID: id, Kind: domain.SnapshotTags, CapturedAt: time.Now()}
}

func TestPersistenceManager_Batching(t *testing.T) {
	store := &MockStorage{}
	pm := NewPersistenceManager(store, 10, nil)
	pm.batchSize = 5
	pm.interval = time.Hour // Disable timer for this test

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pm.Start(ctx)

	for i := 0; i < 4; i++ {
		require.NoError(t, pm.WriteSnapshot(ctx, record(string(rune('a'+i)))))
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.count(), "below batch size")

	require.NoError(t, pm.WriteSnapshot(ctx, record("e")))
	assert.Eventually(t, func() bool { return store.count() == 5 }, time.Second, 10*time.Millisecond)
}

func TestPersistenceManager_FlushOnTicker(t *testing.T) {
	store := &MockStorage{}
	pm := NewPersistenceManager(store, 10, nil)
	pm.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pm.Start(ctx)

	require.NoError(t, pm.WriteSnapshot(ctx, record("a")))
	assert.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPersistenceManager_FlushOnShutdown(t *testing.T) {
	store := &MockStorage{}
	pm := NewPersistenceManager(store, 10, nil)
	pm.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	pm.Start(ctx)
	require.NoError(t, pm.WriteSnapshot(ctx, record("a")))
	require.NoError(t, pm.WriteSnapshot(ctx, record("b")))

	cancel()
	select {
	case <-pm.Done():
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, 2, store.count())
}

func TestPersistenceManager_DisabledAndFull(t *testing.T) {
	store := &MockStorage{}
	pm := NewPersistenceManager(store, 1, nil)

	pm.SetEnabled(false)
	assert.False(t, pm.IsEnabled())
	assert.NoError(t, pm.WriteSnapshot(context.Background(), record("ignored")))

	pm.SetEnabled(true)
	require.NoError(t, pm.WriteSnapshot(context.Background(), record("a")))
	assert.ErrorIs(t, pm.WriteSnapshot(context.Background(), record("b")), ErrQueueFull)
}
