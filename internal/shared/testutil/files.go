package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteSizedFile creates dir/name holding size zero bytes and returns its path.
// Sparse files keep multi-gigabyte fixtures cheap.
func WriteSizedFile(t *testing.T, dir, name string, size int64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate %s: %v", path, err)
	}
	return path
}

// Day returns midnight UTC of the given calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FixedClock returns a now func pinned to t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
