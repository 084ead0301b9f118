package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "todocx/internal/errors"
	"todocx/internal/files"
)

// Format is an output document type
type Format string

const (
	FormatDOCX     Format = "docx"
	FormatMarkdown Format = "markdown"
)

// Ext returns the file extension for f
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return ".docx"
}

// ErrEmptyContent is returned when there is nothing to render
var ErrEmptyContent = errors.New("empty content provided")

// Request describes one document to write
type Request struct {
	Content   string
	Title     string
	Format    Format
	Filename  string
	OutputDir string
}

// Generator writes documents into an output directory
type Generator struct {
	outputDir string
	now       func() time.Time
	logger    *slog.Logger
}

// NewGenerator creates a generator defaulting to outputDir
func NewGenerator(outputDir string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		outputDir: outputDir,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "document_generator")),
	}
}

// Generate renders req and returns the written path. Existing files are
// never overwritten; a numbered name is chosen instead.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", ErrEmptyContent
	}
	now := g.now()

	var (
		data []byte
		err  error
	)
	switch req.Format {
	case FormatMarkdown:
		data = []byte(RenderMarkdown(req.Title, req.Content, now))
	case FormatDOCX, "":
		req.Format = FormatDOCX
		data, err = RenderDOCX(req.Title, req.Content, now)
	default:
		return "", fmt.Errorf("%w: unknown output format %q", apperrors.ErrInvalidRequest, req.Format)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", req.Format, err)
	}

	dir := req.OutputDir
	if dir == "" {
		dir = g.outputDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %v", apperrors.ErrIO, err)
	}

	name := req.Filename
	if name == "" {
		limit := 0
		if req.Format == FormatDOCX {
			limit = 10
		}
		name = DeriveFilename(req.Content, req.Format.Ext(), limit, now)
	} else {
		name = CleanFilename(name)
		if !strings.HasSuffix(name, req.Format.Ext()) {
			name += req.Format.Ext()
		}
	}

	name, err = UniqueFilename(dir, name, now)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrIO, err)
	}
	path := filepath.Join(dir, name)
	if err := files.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrIO, err)
	}

	g.logger.InfoContext(ctx, "Document generated",
		slog.String("format", string(req.Format)),
		slog.String("path", path),
		slog.Int("bytes", len(data)))
	return path, nil
}

// Preview returns the first n runes of content
func Preview(content string, n int) string {
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n])
}
