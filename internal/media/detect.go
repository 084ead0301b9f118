package media

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"todocx/internal/config"
	apperrors "todocx/internal/errors"
)

// Kind is the processing route for an input file
type Kind int

const (
	KindUnknown Kind = iota
	KindAudio
	KindVideo
	KindEbook
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindEbook:
		return "ebook"
	default:
		return "unknown"
	}
}

// Billable reports whether the kind goes through transcription
func (k Kind) Billable() bool {
	return k == KindAudio || k == KindVideo
}

// Detector classifies files by extension
type Detector struct {
	kinds  map[string]Kind
	logger *slog.Logger
}

// NewDetector builds a detector from the configured extension lists
func NewDetector(cfg config.MediaConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		kinds:  make(map[string]Kind),
		logger: logger.With(slog.String("component", "media_detector")),
	}
	d.register(KindAudio, cfg.AudioExtensions)
	d.register(KindVideo, cfg.VideoExtensions)
	d.register(KindEbook, cfg.EbookExtensions)
	return d
}

func (d *Detector) register(kind Kind, exts []string) {
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		d.kinds[ext] = kind
	}
}

// Kind returns the kind for path's extension, or KindUnknown
func (d *Detector) Kind(path string) Kind {
	return d.kinds[strings.ToLower(filepath.Ext(path))]
}

// Detect checks that path is an existing regular file of a supported kind
func (d *Detector) Detect(path string) (Kind, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		d.logger.Warn("Input file does not exist", slog.String("file", path))
		return KindUnknown, fmt.Errorf("%w: file %s does not exist", apperrors.ErrNotFound, path)
	}
	if err != nil {
		d.logger.Error("Failed to stat input file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return KindUnknown, fmt.Errorf("%w: stat %s: %v", apperrors.ErrIO, path, err)
	}
	if info.IsDir() {
		return KindUnknown, fmt.Errorf("%w: %s is a directory, not a file", apperrors.ErrInvalidRequest, path)
	}

	kind := d.Kind(path)
	if kind == KindUnknown {
		return KindUnknown, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedKind, filepath.Ext(path))
	}
	return kind, nil
}
