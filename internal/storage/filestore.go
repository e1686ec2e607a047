package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// transferBufSize is the fixed chunk size for streaming uploads to disk.
// Transfers are never buffered to their declared length.
const transferBufSize = 32 * 1024

// FileStore keeps each room's uploaded files in a directory of its own
// under the configured root.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir. The root and per-room
// directories are created lazily on first use.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

func (s *FileStore) roomDir(roomID string) (string, error) {
	if err := checkComponent("room id", roomID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, roomID), nil
}

// checkComponent rejects room IDs and filenames that would escape the
// store's root directory.
func checkComponent(kind, name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("invalid %s %q", kind, name)
	}
	return nil
}

// Save streams exactly length bytes from r into the room's directory,
// overwriting any prior file with the same name. A zero or negative length
// performs no write and creates no file.
func (s *FileStore) Save(roomID, filename string, r io.Reader, length int64) error {
	if length <= 0 {
		return nil
	}
	if err := checkComponent("filename", filename); err != nil {
		return err
	}
	dir, err := s.roomDir(roomID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create room storage: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, transferBufSize)
	written, err := io.CopyBuffer(f, io.LimitReader(r, length), buf)
	if err != nil {
		return fmt.Errorf("store %s: %w", filename, err)
	}
	if written != length {
		return fmt.Errorf("store %s: got %d of %d bytes: %w", filename, written, length, io.ErrUnexpectedEOF)
	}
	return f.Close()
}

// Open returns a reader for a stored file together with its exact byte length.
// The caller owns the returned file.
func (s *FileStore) Open(roomID, filename string) (*os.File, int64, error) {
	if err := checkComponent("filename", filename); err != nil {
		return nil, 0, err
	}
	dir, err := s.roomDir(roomID)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", filename, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", filename, err)
	}
	return f, info.Size(), nil
}

// List returns the names of all files in the room's directory, creating the
// directory on first use. Names come back in lexical order.
func (s *FileStore) List(roomID string) ([]string, error) {
	dir, err := s.roomDir(roomID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create room storage: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list room storage: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
