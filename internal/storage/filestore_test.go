package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSaveAndOpen(t *testing.T) {
	store := NewFileStore(t.TempDir())
	content := bytes.Repeat([]byte("chunked streaming "), 10000) // > one chunk

	require.NoError(t, store.Save("r1", "notes.txt", bytes.NewReader(content), int64(len(content))))

	f, size, err := store.Open("r1", "notes.txt")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(len(content)), size)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFileStoreOverwrite(t *testing.T) {
	store := NewFileStore(t.TempDir())

	require.NoError(t, store.Save("r1", "a.txt", bytes.NewReader([]byte("first version")), 13))
	require.NoError(t, store.Save("r1", "a.txt", bytes.NewReader([]byte("second")), 6))

	f, size, err := store.Open("r1", "a.txt")
	require.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	assert.Equal(t, int64(6), size)
}

func TestFileStoreNonPositiveLength(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)

	require.NoError(t, store.Save("r1", "empty.txt", bytes.NewReader(nil), 0))
	require.NoError(t, store.Save("r1", "neg.txt", bytes.NewReader(nil), -7))

	// No write means no file and no room directory either.
	_, err := os.Stat(filepath.Join(root, "r1"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreShortUpload(t *testing.T) {
	store := NewFileStore(t.TempDir())
	err := store.Save("r1", "short.txt", bytes.NewReader([]byte("abc")), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFileStoreList(t *testing.T) {
	store := NewFileStore(t.TempDir())

	// Listing an untouched room creates its directory and comes back empty.
	names, err := store.List("r1")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save("r1", "b.txt", bytes.NewReader([]byte("b")), 1))
	require.NoError(t, store.Save("r1", "a.txt", bytes.NewReader([]byte("a")), 1))

	names, err = store.List("r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestFileStoreRoomIsolation(t *testing.T) {
	store := NewFileStore(t.TempDir())

	require.NoError(t, store.Save("r1", "a.txt", bytes.NewReader([]byte("a")), 1))

	names, err := store.List("r2")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, _, err = store.Open("r2", "a.txt")
	assert.Error(t, err)
}

func TestFileStoreRejectsEscapingNames(t *testing.T) {
	store := NewFileStore(t.TempDir())

	for _, name := range []string{"", "..", "../evil", "a/b", `a\b`} {
		err := store.Save("r1", name, bytes.NewReader([]byte("x")), 1)
		assert.Error(t, err, "name %q", name)

		_, _, err = store.Open("r1", name)
		assert.Error(t, err, "name %q", name)
	}
}

// Room IDs are path components too; one like "../other" must not escape
// the store root or alias another room's directory.
func TestFileStoreRejectsEscapingRoomIDs(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)

	require.NoError(t, store.Save("victim", "a.txt", bytes.NewReader([]byte("a")), 1))

	for _, roomID := range []string{"", "..", "../victim", "r1/r2", `r1\r2`} {
		err := store.Save(roomID, "a.txt", bytes.NewReader([]byte("x")), 1)
		assert.Error(t, err, "room id %q", roomID)

		_, _, err = store.Open(roomID, "a.txt")
		assert.Error(t, err, "room id %q", roomID)

		_, err = store.List(roomID)
		assert.Error(t, err, "room id %q", roomID)
	}

	// Nothing leaked outside the root.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "victim", entries[0].Name())
}
