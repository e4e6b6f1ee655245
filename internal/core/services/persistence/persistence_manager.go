package persistence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
)

// ErrQueueFull is returned when a snapshot cannot be queued without blocking.
var ErrQueueFull = errors.New("persistence queue full")

var _ ports.SnapshotSink = (*PersistenceManager)(nil)

// PersistenceManager handles background batch writing of snapshots to storage.
type PersistenceManager struct {
	storage     ports.Storage
	persistChan chan domain.SnapshotRecord
	batchSize   int
	interval    time.Duration
	enabled     bool
	logger      *slog.Logger
	done        chan struct{}
	mu          sync.RWMutex
}

// NewPersistenceManager creates a new manager.
func NewPersistenceManager(storage ports.Storage, bufferSize int, logger *slog.Logger) *PersistenceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistenceManager{
		storage:     storage,
		persistChan: make(chan domain.SnapshotRecord, bufferSize),
		batchSize:   20,
		interval:    5 * time.Second,
		enabled:     true,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// WriteSnapshot queues a record for persistence. It never blocks the caller.
func (p *PersistenceManager) WriteSnapshot(_ context.Context, record domain.SnapshotRecord) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.enabled {
		return nil
	}
	select {
	case p.persistChan <- record:
		return nil
	default:
		return ErrQueueFull
	}
}

// IsEnabled returns the current persistence status.
func (p *PersistenceManager) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetEnabled toggles persistence.
func (p *PersistenceManager) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

// Start begins the persistence loop. Pending records are flushed when ctx
// is done, after which Done is closed.
func (p *PersistenceManager) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	var buffer []domain.SnapshotRecord

	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case rec := <-p.persistChan:
						buffer = append(buffer, rec)
					default:
						p.flushBuffer(context.WithoutCancel(ctx), buffer)
						return
					}
				}
			case rec := <-p.persistChan:
				buffer = append(buffer, rec)
				if len(buffer) >= p.batchSize {
					p.flushBuffer(ctx, buffer)
					buffer = nil
				}
			case <-ticker.C:
				if len(buffer) > 0 {
					p.flushBuffer(ctx, buffer)
					buffer = nil
				}
			}
		}
	}()
}

// Done is closed once the loop has exited and flushed.
func (p *PersistenceManager) Done() <-chan struct{} {
	return p.done
}

func (p *PersistenceManager) flushBuffer(ctx context.Context, buffer []domain.SnapshotRecord) {
	if len(buffer) == 0 || p.storage == nil {
		return
	}
	if err := p.storage.SaveSnapshots(ctx, buffer); err != nil {
		p.logger.Error("Failed to batch save snapshots", "count", len(buffer), "error", err)
	}
}
