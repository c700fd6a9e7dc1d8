package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the abridge home directory.
	DefaultDirName = ".abridge"

	// CacheDirName is the subdirectory for per-unit condensation artifacts.
	CacheDirName = "cache"

	// ExportsDirName is the subdirectory for output documents.
	ExportsDirName = "exports"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the abridge home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.abridge).
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

// CachePath returns the path to the cache directory.
func (d *Dir) CachePath() string {
	return filepath.Join(d.path, CacheDirName)
}

// ExportsPath returns the path to the exports directory.
func (d *Dir) ExportsPath() string {
	return filepath.Join(d.path, ExportsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.CachePath(), d.ExportsPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
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

// DocumentCacheDir returns the cache directory for one source document,
// keyed by its content checksum so a changed source never reuses stale units.
func (d *Dir) DocumentCacheDir(checksum string) string {
	return filepath.Join(d.CachePath(), checksum)
}

// UnitArtifactPath returns the path of the cached condensed body for a unit.
// Unit indices are zero-based.
func (d *Dir) UnitArtifactPath(checksum string, unitIndex int) string {
	return filepath.Join(d.DocumentCacheDir(checksum), fmt.Sprintf("unit_%04d.txt", unitIndex))
}

// EnsureDocumentCacheDir creates the cache directory for a source document.
func (d *Dir) EnsureDocumentCacheDir(checksum string) error {
	return os.MkdirAll(d.DocumentCacheDir(checksum), 0o755)
}
