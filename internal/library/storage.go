package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"clipvault/internal/platform/database"

	"github.com/Data-Corruption/lmdb-go/lmdb"
	"github.com/Data-Corruption/lmdb-go/wrap"
)

// Storage mediates file placement and queue persistence. The manager only
// talks to this interface; tests substitute an in-memory fake.
type Storage interface {
	// MoveIntoStable moves a finished temp file into the media directory
	// under a sanitized name derived from desiredName. An existing file of
	// the same name is overwritten.
	MoveIntoStable(tempPath, desiredName string) (string, error)
	RemoveFile(path string) error
	// RenameFile renames a stored file to a sanitized newName, returning the
	// new path.
	RenameFile(path, newName string) (string, error)
	SaveQueue(records []MediaRecord) error
	LoadQueue() ([]MediaRecord, error)
}

// DiskStorage keeps media files in a dedicated directory and the queue
// snapshot in the library DBI.
type DiskStorage struct {
	MediaDir string
	DB       *wrap.DB
}

func NewDiskStorage(mediaDir string, db *wrap.DB) (*DiskStorage, error) {
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStorage{MediaDir: mediaDir, DB: db}, nil
}

func (s *DiskStorage) MoveIntoStable(tempPath, desiredName string) (string, error) {
	final := filepath.Join(s.MediaDir, SanitizeFileName(desiredName))
	if err := os.Rename(tempPath, final); err == nil {
		return final, nil
	}
	// rename fails across filesystems; fall back to copy+remove
	if err := copyFile(tempPath, final); err != nil {
		return "", fmt.Errorf("move into media dir: %w", err)
	}
	_ = os.Remove(tempPath)
	return final, nil
}

func (s *DiskStorage) RemoveFile(path string) error {
	return os.Remove(path)
}

func (s *DiskStorage) RenameFile(path, newName string) (string, error) {
	final := filepath.Join(filepath.Dir(path), SanitizeFileName(newName))
	if final == path {
		return path, nil
	}
	if err := os.Rename(path, final); err != nil {
		return "", err
	}
	return final, nil
}

func (s *DiskStorage) SaveQueue(records []MediaRecord) error {
	return database.Put(s.DB, database.LibraryDBIName, []byte(database.LibraryQueueKey), records)
}

func (s *DiskStorage) LoadQueue() ([]MediaRecord, error) {
	records, err := database.View[[]MediaRecord](s.DB, database.LibraryDBIName, []byte(database.LibraryQueueKey))
	if err != nil {
		if lmdb.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return *records, nil
}

// SanitizeFileName makes a title safe to use as a file name: path separators
// become underscores and a default media extension is applied when the name
// has none.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if name == "" {
		name = "video"
	}
	if filepath.Ext(name) == "" {
		name += ".mp4"
	}
	return name
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
