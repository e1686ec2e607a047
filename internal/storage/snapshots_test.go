package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestStore creates a snapshot store on an in-memory SQLite database.
func setupTestStore(t *testing.T) *SnapshotStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	store, err := NewSnapshotStore(db)
	if err != nil {
		t.Fatalf("failed to create snapshot store: %v", err)
	}
	return store
}

func TestSnapshotStoreSaveAndLoad(t *testing.T) {
	store := setupTestStore(t)

	state := &RoomState{
		ID: "r1",
		Users: []UserRecord{
			{ID: "u1", Username: "alice"},
			{ID: "u2", Username: "bob"},
		},
		History: []string{"[ts] alice: hi", "[ts] bob: hello"},
	}
	require.NoError(t, store.Save(state))

	states, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, state, states[0])
}

func TestSnapshotStoreOverwritesWholesale(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.Save(&RoomState{
		ID:      "r1",
		Users:   []UserRecord{{ID: "u1", Username: "alice"}},
		History: []string{"one"},
	}))
	require.NoError(t, store.Save(&RoomState{
		ID:      "r1",
		Users:   []UserRecord{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}},
		History: []string{"one", "two"},
	}))

	states, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, []string{"one", "two"}, states[0].History)
	assert.Len(t, states[0].Users, 2)
}

func TestSnapshotStoreMultipleRooms(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.Save(&RoomState{ID: "r1", History: []string{"a"}}))
	require.NoError(t, store.Save(&RoomState{ID: "r2", History: []string{"b"}}))

	states, err := store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, states, 2)

	byID := make(map[string]*RoomState, len(states))
	for _, s := range states {
		byID[s.ID] = s
	}
	assert.Equal(t, []string{"a"}, byID["r1"].History)
	assert.Equal(t, []string{"b"}, byID["r2"].History)
}

func TestSnapshotStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")

	store, err := OpenSnapshotStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(&RoomState{
		ID:      "r1",
		Users:   []UserRecord{{ID: "u1", Username: "alice"}},
		History: []string{"[ts] alice: hi"},
	}))
	require.NoError(t, store.Close())

	store, err = OpenSnapshotStore(path)
	require.NoError(t, err)
	defer store.Close()

	states, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "r1", states[0].ID)
	assert.Equal(t, []string{"[ts] alice: hi"}, states[0].History)
}

func TestSnapshotStoreClosedErrors(t *testing.T) {
	store, err := OpenSnapshotStore(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Save(&RoomState{ID: "r1", History: []string{"a"}})
	assert.Error(t, err)

	_, err = store.LoadAll()
	assert.Error(t, err)
}

func TestSnapshotStoreCorruptRecord(t *testing.T) {
	store := setupTestStore(t)

	snap := RoomSnapshot{RoomID: "r1", Data: []byte("not json")}
	require.NoError(t, store.db.Create(&snap).Error)

	_, err := store.LoadAll()
	assert.ErrorContains(t, err, "decode snapshot")
}

func TestSnapshotStoreEmpty(t *testing.T) {
	store := setupTestStore(t)

	states, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, states)
}
