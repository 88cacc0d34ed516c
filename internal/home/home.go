package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the narrate home directory.
	DefaultDirName = ".narrate"

	// StorageDirName is the subdirectory for translations and audio.
	StorageDirName = "storage"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// LibraryFileName is the SQLite book catalog.
	LibraryFileName = "library.db"
)

// Dir represents the narrate home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.narrate).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// StoragePath returns the default artifact directory.
func (d *Dir) StoragePath() string {
	return filepath.Join(d.path, StorageDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// LibraryPath returns the path to the book catalog database.
func (d *Dir) LibraryPath() string {
	return filepath.Join(d.path, LibraryFileName)
}

// EnsureExists creates the home directory and storage subdirectory.
func (d *Dir) EnsureExists() error {
	// Create storage directory (this also creates the parent)
	if err := os.MkdirAll(d.StoragePath(), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
