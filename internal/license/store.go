package license

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	apperrors "todocx/internal/errors"
	"todocx/internal/files"
)

// Store persists the single active activation code as UTF-8 text
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a store backed by path
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger.With(slog.String("component", "license_store")),
	}
}

// Path returns the backing file location
func (s *Store) Path() string {
	return s.path
}

// Save overwrites the record with blob
func (s *Store) Save(ctx context.Context, blob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := []byte(strings.TrimSpace(blob))
	if err := files.WriteFileAtomic(s.path, data, 0600); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save license",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: save license: %v", apperrors.ErrIO, err)
	}

	s.logger.InfoContext(ctx, "License saved",
		slog.String("path", s.path),
		slog.Int("size_bytes", len(data)))
	return nil
}

// Load returns the stored code. ok is false when no record exists; err is
// reserved for records that exist but cannot be read.
func (s *Store) Load(ctx context.Context) (blob string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read license",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return "", false, fmt.Errorf("%w: read license: %v", apperrors.ErrIO, err)
	}

	blob = strings.TrimSpace(string(data))
	if blob == "" {
		return "", false, nil
	}
	return blob, true, nil
}

// Clear removes the record and reports whether one existed
func (s *Store) Clear(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed, err := files.RemoveIfExists(s.path)
	if err != nil {
		return false, fmt.Errorf("%w: clear license: %v", apperrors.ErrIO, err)
	}
	if existed {
		s.logger.InfoContext(ctx, "License cleared", slog.String("path", s.path))
	}
	return existed, nil
}
