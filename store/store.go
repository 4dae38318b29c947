// Package store persists aggregator snapshots in an append-only SQL table.
// Each committed operation adds one row; the latest row is the live state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Iwinswap/iwinswap-yield-aggregator-go/aggregator"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// SnapshotRecord is one committed operation's full state.
type SnapshotRecord struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OpID      uuid.UUID      `gorm:"column:op_id;type:text;not null;uniqueIndex" json:"op_id"`
	Op        string         `gorm:"column:op;not null;index" json:"op"`
	TakenAt   time.Time      `gorm:"column:taken_at;not null" json:"taken_at"`
	State     datatypes.JSON `gorm:"column:state;not null" json:"state"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (SnapshotRecord) TableName() string { return "aggregator_snapshots" }

// Store implements aggregator.Store on top of gorm.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) a SQLite database at dsn.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("store: dsn is required")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return New(db)
}

// New wraps an open database and migrates the snapshot table.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

// Save appends snap.
func (s *Store) Save(ctx context.Context, snap aggregator.Snapshot) error {
	opID, err := uuid.Parse(snap.OpID)
	if err != nil {
		return fmt.Errorf("store: bad op id %q: %w", snap.OpID, err)
	}
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	rec := SnapshotRecord{
		OpID:    opID,
		Op:      snap.Op,
		TakenAt: snap.TakenAt,
		State:   datatypes.JSON(state),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// Load returns the most recent snapshot, or nil when none was saved.
func (s *Store) Load(ctx context.Context) (*aggregator.Snapshot, error) {
	var rec SnapshotRecord
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}
	if rec.ID == 0 {
		return nil, nil
	}
	var snap aggregator.Snapshot
	if err := json.Unmarshal(rec.State, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot %d: %w", rec.ID, err)
	}
	return &snap, nil
}

// History returns up to limit of the most recent records, newest first,
// without their state payload.
func (s *Store) History(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	var out []SnapshotRecord
	err := s.db.WithContext(ctx).
		Select("id", "op_id", "op", "taken_at", "created_at").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ aggregator.Store = (*Store)(nil)
