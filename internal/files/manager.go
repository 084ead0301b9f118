package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"todocx/internal/config"
)

// ErrInvalidName is returned for names that would escape their directory
var ErrInvalidName = errors.New("invalid file name")

// WriteFileAtomic replaces path with data. The bytes go to a temp file in the
// same directory which is synced and renamed over path, so readers observe
// either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// RemoveIfExists deletes path and reports whether it existed
func RemoveIfExists(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// FileSize returns the size of a file in bytes
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Stem returns the base name of path without its extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Manager resolves pipeline locations under the configured directories
type Manager struct {
	paths *config.Paths
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths) *Manager {
	return &Manager{paths: paths}
}

// Paths returns the resolved directory layout
func (m *Manager) Paths() *config.Paths {
	return m.paths
}

// CompressedPath returns a fresh location for the re-encoded copy of src.
// Every call yields a distinct name so concurrent jobs never share one.
func (m *Manager) CompressedPath(src string) string {
	return filepath.Join(m.paths.CompressedDir, artifactName(src, "compressed"))
}

// ExtractedAudioPath returns a fresh location for the audio track of a video
func (m *Manager) ExtractedAudioPath(src string) string {
	return filepath.Join(m.paths.AudioDir, artifactName(src, "audio"))
}

// artifactName is "{stem}_{8 hex}_{suffix}.mp3"
func artifactName(src, suffix string) string {
	tag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s.mp3", Stem(src), tag, suffix)
}

// OutputPath joins a bare file name onto the output directory. Names with
// separators or parent references are rejected.
func (m *Manager) OutputPath(name string) (string, error) {
	return JoinBase(m.paths.OutputDir, name)
}

// JoinBase joins name onto dir after checking that name is a plain file name
func JoinBase(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, name), nil
}
