package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// UserRecord is one roster entry in a persisted room snapshot. Presence is
// not persisted; every user is offline when a snapshot is loaded.
type UserRecord struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RoomState is the serialized form of one room: the room owns its users and
// history outright, keyed by room ID.
type RoomState struct {
	ID      string       `json:"id"`
	Users   []UserRecord `json:"users"`
	History []string     `json:"history"`
}

// RoomSnapshot is the durable record backing one room, overwritten wholesale
// on every persisted mutation.
type RoomSnapshot struct {
	RoomID    string `gorm:"primarykey;size:128"`
	UpdatedAt time.Time
	Data      []byte `gorm:"not null"`
}

// TableName returns the table name for RoomSnapshot.
func (RoomSnapshot) TableName() string {
	return "room_snapshots"
}

// SnapshotStore persists room snapshots in a SQLite database.
type SnapshotStore struct {
	db *gorm.DB
}

// OpenSnapshotStore opens (or creates) the snapshot database at path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	return NewSnapshotStore(db)
}

// NewSnapshotStore wraps an existing database handle, migrating the snapshot
// table if needed.
func NewSnapshotStore(db *gorm.DB) (*SnapshotStore, error) {
	if err := db.AutoMigrate(&RoomSnapshot{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot table: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Save overwrites the room's durable record in full.
func (s *SnapshotStore) Save(state *RoomState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot for room %s: %w", state.ID, err)
	}
	snap := RoomSnapshot{RoomID: state.ID, UpdatedAt: time.Now(), Data: data}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&snap).Error; err != nil {
		return fmt.Errorf("save snapshot for room %s: %w", state.ID, err)
	}
	return nil
}

// LoadAll returns the state of every room that has a durable record.
func (s *SnapshotStore) LoadAll() ([]*RoomState, error) {
	var snaps []RoomSnapshot
	if err := s.db.Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	states := make([]*RoomState, 0, len(snaps))
	for _, snap := range snaps {
		var state RoomState
		if err := json.Unmarshal(snap.Data, &state); err != nil {
			return nil, fmt.Errorf("decode snapshot for room %s: %w", snap.RoomID, err)
		}
		states = append(states, &state)
	}
	return states, nil
}

// Close releases the underlying database connection.
func (s *SnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
