package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the resolved locations used by the backend
type Paths struct {
	ConfigDir     string
	TempDir       string
	CompressedDir string
	AudioDir      string
	OutputDir     string
	LicenseFile   string
	QuotaFile     string
}

// NewPaths derives every file location from the configured directories
func NewPaths(cfg PathsConfig) *Paths {
	return &Paths{
		ConfigDir:     cfg.ConfigDir,
		TempDir:       cfg.TempDir,
		CompressedDir: filepath.Join(cfg.TempDir, "compressed"),
		AudioDir:      filepath.Join(cfg.TempDir, "audio"),
		OutputDir:     cfg.OutputDir,
		LicenseFile:   filepath.Join(cfg.ConfigDir, LicenseFileName),
		QuotaFile:     filepath.Join(cfg.ConfigDir, QuotaFileName),
	}
}

// DefaultConfigDir returns the user-writable directory holding the license
// and quota records: %APPDATA%\to-docx-desktop on Windows, ~/.to-docx elsewhere.
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, "AppData", "Roaming", AppDirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, AppDotDir), nil
}

// DefaultTempDir returns the scratch directory for re-encoded media
func DefaultTempDir() string {
	return filepath.Join(os.TempDir(), AppDirName)
}

// DefaultOutputDir returns ~/Documents/ToDocx
func DefaultOutputDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "ToDocx"), nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.ConfigDir,
		p.TempDir,
		p.CompressedDir,
		p.AudioDir,
		p.OutputDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}

	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved locations for support diagnostics
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		return
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("config", p.ConfigDir),
			slog.String("temp", p.TempDir),
			slog.String("output", p.OutputDir),
		),
		slog.Group("records",
			slog.String("license", p.LicenseFile),
			slog.Bool("license_exists", FileExists(p.LicenseFile)),
			slog.String("quota", p.QuotaFile),
			slog.Bool("quota_exists", FileExists(p.QuotaFile)),
		))
}
