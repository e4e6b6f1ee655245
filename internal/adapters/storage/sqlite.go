package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
)

// ErrSnapshotNotFound is returned when no snapshot of the requested kind exists.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// SnapshotModel is the GORM model for one captured snapshot.
type SnapshotModel struct {
	ID         string    `gorm:"primaryKey"`
	Kind       string    `gorm:"index"`
	CapturedAt time.Time `gorm:"index"`
	Entries    int

	Tags     []TagRecordModel     `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE"`
	Networks []NetworkRecordModel `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE"`
}

// TagRecordModel stores one tracked tag inside a snapshot.
type TagRecordModel struct {
	ID         uint   `gorm:"primaryKey"`
	SnapshotID string `gorm:"index"`
	Position   int
	Address    string `gorm:"index"`
	Name       string
	Kind       string
	RSSI       int
	Samples    string // JSON encoded []int
	Trend      string
	Distance   float64
	Count      int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// NetworkRecordModel stores one access point inside a snapshot.
type NetworkRecordModel struct {
	ID         uint   `gorm:"primaryKey"`
	SnapshotID string `gorm:"index"`
	Position   int
	BSSID      string `gorm:"index"`
	SSID       string
	Security   string
	Signal     int
	RSSI       int
	Band       string
	Frequency  int
	Channel    int
	Quality    string
	Count      int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// Option configures the adapter.
type Option func(*gorm.Config, *[]gorm.Plugin)

// WithTracing instruments every query with OpenTelemetry spans.
func WithTracing() Option {
	return func(_ *gorm.Config, plugins *[]gorm.Plugin) {
		*plugins = append(*plugins, tracing.NewPlugin(tracing.WithoutMetrics()))
	}
}

// NewSQLiteAdapter initializes the database and migrates schema.
func NewSQLiteAdapter(path string, opts ...Option) (*SQLiteAdapter, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	var plugins []gorm.Plugin
	for _, opt := range opts {
		opt(cfg, &plugins)
	}

	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	for _, p := range plugins {
		if err := db.Use(p); err != nil {
			return nil, fmt.Errorf("register gorm plugin %s: %w", p.Name(), err)
		}
	}

	if err := db.AutoMigrate(&SnapshotModel{}, &TagRecordModel{}, &NetworkRecordModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteAdapter{db: db}, nil
}

// SaveSnapshots stores records in a single transaction. Records whose ID is
// already present are skipped.
func (a *SQLiteAdapter) SaveSnapshots(ctx context.Context, records []domain.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			model := toModel(rec)
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Omit("Tags", "Networks").
				Create(&model)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if len(model.Tags) > 0 {
				if err := tx.CreateInBatches(model.Tags, 100).Error; err != nil {
					return err
				}
			}
			if len(model.Networks) > 0 {
				if err := tx.CreateInBatches(model.Networks, 100).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// LatestSnapshot returns the most recently captured snapshot of a kind.
func (a *SQLiteAdapter) LatestSnapshot(ctx context.Context, kind domain.SnapshotKind) (*domain.SnapshotRecord, error) {
	records, err := a.ListSnapshots(ctx, kind, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", kind, ErrSnapshotNotFound)
	}
	return &records[0], nil
}

// ListSnapshots returns up to limit snapshots of a kind, newest first.
// A non-positive limit returns all of them.
func (a *SQLiteAdapter) ListSnapshots(ctx context.Context, kind domain.SnapshotKind, limit int) ([]domain.SnapshotRecord, error) {
	byPosition := func(db *gorm.DB) *gorm.DB { return db.Order("position") }

	query := a.db.WithContext(ctx).
		Preload("Tags", byPosition).
		Preload("Networks", byPosition).
		Where("kind = ?", string(kind)).
		Order("captured_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []SnapshotModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]domain.SnapshotRecord, len(models))
	for i, m := range models {
		records[i] = toDomain(m)
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var _ ports.Storage = (*SQLiteAdapter)(nil)
